// Package sccell provides state cells: single mutable values with interception of writes,
// change notification, and two-way bindings.
//
// A Cell owns its storage; a Binding is a two-way reference to a value owned elsewhere, such
// as a cell belonging to another component. Interceptors make it possible to constrain what a
// cell stores, such as clamping a number to a maximum.
package sccell

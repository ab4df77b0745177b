// Package sharedtest contains types and functions used by tests in multiple packages.
//
// Application code should never use this package. It is in internal/ specifically so that
// it cannot be imported from outside of the module.
package sharedtest

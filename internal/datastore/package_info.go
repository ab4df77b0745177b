// Package datastore is an internal package containing implementation details for the hub's
// storage layer. These implementation details are not visible to application code.
package datastore

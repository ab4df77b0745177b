// Package datasource is an internal package containing implementation details for the hub's
// data source components (streaming, polling, external updates). These implementation details
// are not visible to application code.
package datasource

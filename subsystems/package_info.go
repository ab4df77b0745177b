// Package subsystems contains interfaces for implementations of hub components (stores and
// data sources), and the configuration types that component builders use.
//
// Most applications will not need to refer to these types. You will use them if you are
// writing a custom component, such as a persistent store integration for a database.
package subsystems

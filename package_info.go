// Package statecell is a reactive state container for Go applications.
//
// It keeps a versioned set of named values in a pluggable store, feeds that store from a
// pluggable source (an SSE stream, a polling endpoint, data files, or nothing at all), and
// publishes change events so that application code can react to updates. The sccell,
// scobserve, and scenv packages build on the same event plumbing to provide typed state
// cells, observable objects, and environment scopes for in-process state.
//
// The main entry point is MakeHub:
//
//	hub, err := statecell.MakeHub(statecell.Config{
//	    Source: sccomponents.StreamingSource().BaseURI("http://my-state-service"),
//	}, 5*time.Second)
package statecell

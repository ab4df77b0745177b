// Package sccomponents provides the standard factories for the hub's pluggable components:
// stores and sources.
//
// Some of the configuration options in statecell.Config are represented as component
// factories based on a builder pattern. For instance, to configure the hub to poll an HTTP
// endpoint for state data, you would get a builder from PollingSource(), call any of its
// methods to set configuration options, and store it in the Source field of statecell.Config:
//
//	config := statecell.Config{
//	    Source: sccomponents.PollingSource().
//	        BaseURI("http://my-state-service").
//	        PollInterval(time.Minute),
//	}
package sccomponents

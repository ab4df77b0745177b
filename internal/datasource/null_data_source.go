package datasource

import "github.com/statecell/go-statecell/subsystems"

// NewNullSource returns a stub implementation of Source, used when the hub's state is
// maintained entirely by external writes.
func NewNullSource() subsystems.Source {
	return nullSource{}
}

type nullSource struct{}

func (n nullSource) IsInitialized() bool {
	return true
}

func (n nullSource) Close() error {
	return nil
}

func (n nullSource) Start(closeWhenReady chan<- struct{}) {
	close(closeWhenReady)
}

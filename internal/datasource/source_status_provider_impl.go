package datasource

import (
	"time"

	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/internal"
)

// sourceStatusProviderImpl is the internal implementation of SourceStatusProvider. It's not
// exported because the rest of the hub code only interacts with the public interface.
type sourceStatusProviderImpl struct {
	broadcaster *internal.Broadcaster[interfaces.SourceStatus]
	sinkImpl    *UpdateSinkImpl
}

// NewSourceStatusProviderImpl creates the internal implementation of SourceStatusProvider.
func NewSourceStatusProviderImpl(
	broadcaster *internal.Broadcaster[interfaces.SourceStatus],
	sinkImpl *UpdateSinkImpl,
) interfaces.SourceStatusProvider {
	return &sourceStatusProviderImpl{broadcaster, sinkImpl}
}

func (s *sourceStatusProviderImpl) GetStatus() interfaces.SourceStatus {
	return s.sinkImpl.GetLastStatus()
}

func (s *sourceStatusProviderImpl) AddStatusListener() <-chan interfaces.SourceStatus {
	return s.broadcaster.AddListener()
}

func (s *sourceStatusProviderImpl) RemoveStatusListener(ch <-chan interfaces.SourceStatus) {
	s.broadcaster.RemoveListener(ch)
}

func (s *sourceStatusProviderImpl) WaitFor(desiredState interfaces.SourceState, timeout time.Duration) bool {
	return s.sinkImpl.waitFor(desiredState, timeout)
}

package subsystems

import (
	"net/http"

	"go.uber.org/zap"
)

// HTTPConfiguration is the network configuration that components making HTTP requests (the
// polling and streaming sources) receive from the hub.
type HTTPConfiguration struct {
	// DefaultHeaders are headers that should be added to all HTTP requests.
	DefaultHeaders http.Header

	// CreateHTTPClient returns a new HTTP client instance. If nil, http.DefaultClient settings
	// are used.
	CreateHTTPClient func() *http.Client
}

// ClientContext provides context information from the hub when creating other components.
//
// This is passed as a parameter to the Build methods of implementations of Store, Source, etc.
// The actual implementation type may contain other properties that are only relevant to the
// built-in components; for test purposes you may use the simple struct type
// BasicClientContext.
type ClientContext interface {
	// GetHTTP returns the configured HTTPConfiguration.
	GetHTTP() HTTPConfiguration

	// GetLogging returns the configured logger.
	GetLogging() *zap.Logger

	// GetSourceUpdateSink returns the component that Source implementations use to deliver
	// data and status updates to the hub.
	//
	// This component is only available when the hub is creating a Source. Otherwise the
	// method returns nil.
	GetSourceUpdateSink() UpdateSink

	// GetStoreUpdateSink returns the component that Store implementations use to deliver
	// store status updates to the hub.
	//
	// This component is only available when the hub is creating a Store. Otherwise the
	// method returns nil.
	GetStoreUpdateSink() StoreUpdateSink
}

// BasicClientContext is the basic implementation of the ClientContext interface, not including
// any private fields that the hub may use for implementation details.
type BasicClientContext struct {
	HTTP             HTTPConfiguration
	Logging          *zap.Logger
	SourceUpdateSink UpdateSink
	StoreUpdateSink  StoreUpdateSink
}

func (b BasicClientContext) GetHTTP() HTTPConfiguration { //nolint:revive
	ret := b.HTTP
	if ret.CreateHTTPClient == nil {
		ret.CreateHTTPClient = func() *http.Client {
			client := *http.DefaultClient
			return &client
		}
	}
	return ret
}

func (b BasicClientContext) GetLogging() *zap.Logger { //nolint:revive
	if b.Logging == nil {
		return zap.NewNop()
	}
	return b.Logging
}

func (b BasicClientContext) GetSourceUpdateSink() UpdateSink { return b.SourceUpdateSink } //nolint:revive

func (b BasicClientContext) GetStoreUpdateSink() StoreUpdateSink { return b.StoreUpdateSink } //nolint:revive

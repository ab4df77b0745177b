package datasource

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/statecell/go-statecell/subsystems"
	"github.com/statecell/go-statecell/subsystems/storetypes"
)

func makeRequester(serverURL string) pollingRequester {
	context := subsystems.BasicClientContext{Logging: zap.NewNop()}
	return newPollingRequester(context, nil, serverURL)
}

func TestRequestorRequestAll(t *testing.T) {
	const body = `{"values": {"key1": {"version": 1, "value": true}, "key2": {"version": 3, "value": "x", "deleted": true}}}`

	requestsCh := make(chan *http.Request, 10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestsCh <- r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	requester := makeRequester(server.URL)
	data, cached, err := requester.requestAll()

	require.NoError(t, err)
	assert.False(t, cached)

	require.Len(t, data, 1)
	assert.Equal(t, storetypes.DefaultNamespace, data[0].Namespace)
	itemsByKey := make(map[string]storetypes.ItemDescriptor)
	for _, item := range data[0].Items {
		itemsByKey[item.Key] = item.Item
	}
	assert.Equal(t, map[string]storetypes.ItemDescriptor{
		"key1": {Version: 1, Value: true},
		"key2": storetypes.Tombstone(3),
	}, itemsByKey)

	request := <-requestsCh
	assert.Equal(t, PollingPath, request.URL.Path)
	assert.Equal(t, "GET", request.Method)
}

func TestRequestorUsesDefaultHeaders(t *testing.T) {
	requestsCh := make(chan *http.Request, 10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestsCh <- r
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	headers := make(http.Header)
	headers.Set("Authorization", "secret")
	context := subsystems.BasicClientContext{
		HTTP:    subsystems.HTTPConfiguration{DefaultHeaders: headers},
		Logging: zap.NewNop(),
	}
	requester := newPollingRequester(context, nil, server.URL)

	_, _, err := requester.requestAll()
	require.NoError(t, err)

	request := <-requestsCh
	assert.Equal(t, "secret", request.Header.Get("Authorization"))
}

func TestRequestorReturnsCachedFlagForUnchangedResponse(t *testing.T) {
	etag := `"abc123"`
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Etag", etag)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"values": {"key": {"version": 1, "value": "x"}}}`))
	}))
	defer server.Close()

	requester := makeRequester(server.URL)

	data, cached, err := requester.requestAll()
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, data, 1)

	// The second poll revalidates with If-None-Match and gets a 304 back.
	data, cached, err = requester.requestAll()
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Nil(t, data)
	assert.Equal(t, 2, requestCount)
}

func TestRequestorHTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	requester := makeRequester(server.URL)
	_, _, err := requester.requestAll()

	require.Error(t, err)
	httpErr, ok := err.(httpStatusError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestRequestorNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // closed immediately so the connection is refused

	requester := makeRequester(server.URL)
	_, _, err := requester.requestAll()

	require.Error(t, err)
	_, ok := err.(httpStatusError)
	assert.False(t, ok)
}

func TestRequestorMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{sorry`))
	}))
	defer server.Close()

	requester := makeRequester(server.URL)
	_, _, err := requester.requestAll()

	require.Error(t, err)
	_, ok := err.(malformedDataError)
	assert.True(t, ok)
}

func TestRequestorBaseURI(t *testing.T) {
	requester := makeRequester("http://fake-base-uri")
	assert.Equal(t, "http://fake-base-uri", requester.baseURI())
}

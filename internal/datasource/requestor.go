package datasource

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gregjones/httpcache"
	"go.uber.org/zap"

	"github.com/statecell/go-statecell/subsystems"
	"github.com/statecell/go-statecell/subsystems/storetypes"
)

// PollingPath is the resource that the polling source requests from the base URI.
const PollingPath = "/state/latest-all"

// pollingRequester is the interface implemented by pollingRequesterImpl, used for testing.
type pollingRequester interface {
	requestAll() (data []storetypes.Collection, cached bool, err error)
	baseURI() string
}

// pollingRequesterImpl is the internal implementation of fetching a full data set from the
// polling endpoint. Responses pass through an httpcache transport, so an endpoint that
// supports ETags or cache-control headers lets an unchanged poll skip the store update.
type pollingRequesterImpl struct {
	httpClient *http.Client
	pollURI    string
	headers    http.Header
	logger     *zap.Logger
}

func newPollingRequester(
	context subsystems.ClientContext,
	httpClient *http.Client,
	baseURI string,
) pollingRequester {
	if httpClient == nil {
		httpClient = context.GetHTTP().CreateHTTPClient()
	}

	modifiedClient := *httpClient
	modifiedClient.Transport = &httpcache.Transport{
		Cache:               httpcache.NewMemoryCache(),
		MarkCachedResponses: true,
		Transport:           httpClient.Transport,
	}

	return &pollingRequesterImpl{
		httpClient: &modifiedClient,
		pollURI:    baseURI,
		headers:    context.GetHTTP().DefaultHeaders,
		logger:     context.GetLogging(),
	}
}

func (r *pollingRequesterImpl) baseURI() string {
	return r.pollURI
}

func (r *pollingRequesterImpl) requestAll() ([]storetypes.Collection, bool, error) {
	r.logger.Debug("Polling for state updates")

	body, cached, err := r.makeRequest(PollingPath)
	if err != nil {
		return nil, false, err
	}
	if cached {
		return nil, true, nil
	}

	data, err := parseAllStateData(body)
	if err != nil {
		return nil, false, malformedDataError{err}
	}
	return data, false, nil
}

func (r *pollingRequesterImpl) makeRequest(resource string) ([]byte, bool, error) {
	req, reqErr := http.NewRequest("GET", r.pollURI+resource, nil)
	if reqErr != nil {
		return nil, false, reqErr
	}
	url := req.URL.String()

	for k, vv := range r.headers {
		req.Header[k] = vv
	}

	res, resErr := r.httpClient.Do(req)

	if resErr != nil {
		return nil, false, resErr
	}

	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if err := checkForHTTPError(res.StatusCode, url); err != nil {
		return nil, false, err
	}

	cached := res.Header.Get(httpcache.XFromCache) != ""

	body, ioErr := io.ReadAll(res.Body)

	if ioErr != nil {
		return nil, false, ioErr // COVERAGE: there is no way to simulate this condition in unit tests
	}
	return body, cached, nil
}

// stateItemRep is the JSON representation of a single versioned item, used by both the polling
// and streaming wire formats.
type stateItemRep struct {
	Version int         `json:"version"`
	Value   interface{} `json:"value"`
	Deleted bool        `json:"deleted,omitempty"`
}

func (rep stateItemRep) toDescriptor() storetypes.ItemDescriptor {
	if rep.Deleted {
		return storetypes.Tombstone(rep.Version)
	}
	return storetypes.ItemDescriptor{Version: rep.Version, Value: rep.Value}
}

// parseAllStateData parses a JSON document representing a full data set, grouped by
// namespace. For example:
//
//	{
//	  "values": {
//	    "key1": { "version": 1, "value": true },
//	    "key2": { "version": 2, "value": "hello" }
//	  }
//	}
func parseAllStateData(body []byte) ([]storetypes.Collection, error) {
	var rep map[string]map[string]stateItemRep
	if err := json.Unmarshal(body, &rep); err != nil {
		return nil, err
	}
	ret := make([]storetypes.Collection, 0, len(rep))
	for namespace, itemsMap := range rep {
		items := make([]storetypes.KeyedItemDescriptor, 0, len(itemsMap))
		for key, itemRep := range itemsMap {
			items = append(items, storetypes.KeyedItemDescriptor{Key: key, Item: itemRep.toDescriptor()})
		}
		ret = append(ret, storetypes.Collection{Namespace: storetypes.Namespace(namespace), Items: items})
	}
	return ret, nil
}

package scfiledata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"
	"gopkg.in/ghodss/yaml.v1"

	"github.com/statecell/go-statecell/interfaces"
	"github.com/statecell/go-statecell/subsystems"
	"github.com/statecell/go-statecell/subsystems/storetypes"
)

type fileSource struct {
	updateSink      subsystems.UpdateSink
	absFilePaths    []string
	reloaderFactory ReloaderFactory
	logger          *zap.Logger
	isInitialized   bool
	readyCh         chan<- struct{}
	readyOnce       sync.Once
	closeOnce       sync.Once
	closeReloaderCh chan struct{}
}

func newFileSourceImpl(
	context subsystems.ClientContext,
	updateSink subsystems.UpdateSink,
	filePaths []string,
	reloaderFactory ReloaderFactory,
) (subsystems.Source, error) {
	abs, err := absFilePaths(filePaths)
	if err != nil {
		// COVERAGE: there's no reliable cross-platform way to simulate an invalid path in unit tests
		return nil, err
	}

	return &fileSource{
		updateSink:      updateSink,
		absFilePaths:    abs,
		reloaderFactory: reloaderFactory,
		logger:          context.GetLogging(),
	}, nil
}

func (fs *fileSource) IsInitialized() bool {
	return fs.isInitialized
}

func (fs *fileSource) Start(closeWhenReady chan<- struct{}) {
	fs.readyCh = closeWhenReady
	fs.reload()

	// If there is no reloader, then we signal readiness immediately regardless of whether the
	// data load succeeded or failed.
	if fs.reloaderFactory == nil {
		fs.signalStartComplete(fs.isInitialized)
		return
	}

	// If there is a reloader, and if we haven't yet successfully loaded data, then the
	// readiness signal will happen the first time we do get valid data (in reload).
	fs.closeReloaderCh = make(chan struct{})
	err := fs.reloaderFactory(fs.absFilePaths, fs.logger, fs.reload, fs.closeReloaderCh)
	if err != nil {
		fs.logger.Error("Unable to start reloader", zap.Error(err))
	}
}

// reload rereads all of the configured source files and replaces the hub state with their
// contents. If any file cannot be loaded or parsed, the state is not modified.
func (fs *fileSource) reload() {
	filesData := make([]fileData, 0)
	for _, path := range fs.absFilePaths {
		data, err := readFile(path)
		if err == nil {
			filesData = append(filesData, data)
		} else {
			fs.logger.Error("Unable to load state data", zap.Error(err), zap.String("path", path))
			fs.updateSink.UpdateStatus(interfaces.SourceStateInterrupted,
				interfaces.SourceErrorInfo{
					Kind:    interfaces.SourceErrorKindInvalidData,
					Message: err.Error(),
					Time:    time.Now(),
				})
			return
		}
	}
	storeData, err := mergeFileData(filesData...)
	if err == nil {
		if fs.updateSink.Init(storeData) {
			fs.signalStartComplete(true)
			fs.updateSink.UpdateStatus(interfaces.SourceStateValid, interfaces.SourceErrorInfo{})
		}
	} else {
		fs.updateSink.UpdateStatus(interfaces.SourceStateInterrupted,
			interfaces.SourceErrorInfo{
				Kind:    interfaces.SourceErrorKindInvalidData,
				Message: err.Error(),
				Time:    time.Now(),
			})
	}
	if err != nil {
		fs.logger.Error("Unable to load state data", zap.Error(err))
	}
}

func (fs *fileSource) signalStartComplete(succeeded bool) {
	fs.readyOnce.Do(func() {
		fs.isInitialized = succeeded
		if fs.readyCh != nil {
			close(fs.readyCh)
		}
	})
}

// Close is called automatically when the hub is closed.
func (fs *fileSource) Close() (err error) {
	fs.closeOnce.Do(func() {
		if fs.closeReloaderCh != nil {
			close(fs.closeReloaderCh)
		}
	})
	return nil
}

func absFilePaths(paths []string) ([]string, error) {
	absPaths := make([]string, 0)
	for _, p := range paths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			// COVERAGE: there's no reliable cross-platform way to simulate an invalid path in unit tests
			return nil, fmt.Errorf("unable to determine absolute path for '%s'", p)
		}
		absPaths = append(absPaths, absPath)
	}
	return absPaths, nil
}

// fileData is the schema of a source file. "values" holds bare values, which are given
// version 1; "items" holds explicitly versioned items, for when a file needs to override
// something delivered at a higher version elsewhere.
type fileData struct {
	Values *map[string]interface{} `json:"values"`
	Items  *map[string]fileItem    `json:"items"`
}

type fileItem struct {
	Version int         `json:"version"`
	Value   interface{} `json:"value"`
}

func readFile(path string) (fileData, error) {
	var data fileData
	var rawData []byte
	var err error
	if rawData, err = os.ReadFile(path); err != nil { //nolint:gosec // G304: ok to read file into variable
		return data, fmt.Errorf("unable to read file: %s", err)
	}
	if detectJSON(rawData) {
		err = json.Unmarshal(rawData, &data)
	} else {
		err = yaml.Unmarshal(rawData, &data)
	}
	if err != nil {
		err = fmt.Errorf("error parsing file: %s", err)
	}
	return data, err
}

func detectJSON(rawData []byte) bool {
	// A valid JSON file for our purposes must be an object, i.e. it must start with '{'
	return strings.HasPrefix(strings.TrimLeftFunc(string(rawData), unicode.IsSpace), "{")
}

func insertData(
	all map[string]storetypes.ItemDescriptor,
	key string,
	data storetypes.ItemDescriptor,
) error {
	if _, exists := all[key]; exists {
		return fmt.Errorf("key '%s' is specified by multiple files", key)
	}
	all[key] = data
	return nil
}

func mergeFileData(allFileData ...fileData) ([]storetypes.Collection, error) {
	all := map[string]storetypes.ItemDescriptor{}
	for _, d := range allFileData {
		if d.Values != nil {
			for key, value := range *d.Values {
				data := storetypes.ItemDescriptor{Version: 1, Value: value}
				if err := insertData(all, key, data); err != nil {
					return nil, err
				}
			}
		}
		if d.Items != nil {
			for key, item := range *d.Items {
				data := storetypes.ItemDescriptor{Version: item.Version, Value: item.Value}
				if err := insertData(all, key, data); err != nil {
					return nil, err
				}
			}
		}
	}
	items := make([]storetypes.KeyedItemDescriptor, 0, len(all))
	for k, v := range all {
		items = append(items, storetypes.KeyedItemDescriptor{Key: k, Item: v})
	}
	return []storetypes.Collection{{Namespace: storetypes.DefaultNamespace, Items: items}}, nil
}

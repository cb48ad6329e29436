package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cortexkit/neuromem/pkg/errors"
	"github.com/cortexkit/neuromem/pkg/interfaces"
)

// FileCollection persists a collection as a single JSON file. Writes
// replace the whole file atomically (temp file + rename), which mirrors
// the full-serialize discipline of the stores that use it.
type FileCollection struct {
	path    string
	mu      sync.RWMutex
	records map[string]json.RawMessage
	logger  interfaces.Logger

	watcher   *fsnotify.Watcher
	watchDone chan struct{}
	lastFlush time.Time
}

// NewFileCollection creates a file-backed collection at dir/name.json,
// loading existing records if the file is present
func NewFileCollection(dir, name string, logger interfaces.Logger) (*FileCollection, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewStorageErrorWithCause("failed to create storage directory", err)
	}

	fc := &FileCollection{
		path:    filepath.Join(dir, name+".json"),
		records: make(map[string]json.RawMessage),
		logger:  logger,
	}

	if err := fc.load(); err != nil {
		return nil, err
	}
	return fc, nil
}

func (fc *FileCollection) load() error {
	data, err := os.ReadFile(fc.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.NewStorageErrorWithCause("failed to read collection file", err)
	}
	if len(data) == 0 {
		return nil
	}

	records := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &records); err != nil {
		return errors.NewFileCorruptedError(fc.path)
	}

	fc.mu.Lock()
	fc.records = records
	fc.mu.Unlock()
	return nil
}

// flush must be called with fc.mu held
func (fc *FileCollection) flush() error {
	data, err := json.MarshalIndent(fc.records, "", "  ")
	if err != nil {
		return errors.NewStorageErrorWithCause("failed to marshal collection", err)
	}

	tmp := fc.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.NewStorageErrorWithCause("failed to write collection file", err)
	}
	if err := os.Rename(tmp, fc.path); err != nil {
		return errors.NewStorageErrorWithCause("failed to replace collection file", err)
	}
	fc.lastFlush = time.Now()
	return nil
}

// GetAll returns a copy of every record
func (fc *FileCollection) GetAll(ctx context.Context) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fc.mu.RLock()
	defer fc.mu.RUnlock()

	out := make(map[string][]byte, len(fc.records))
	for id, value := range fc.records {
		out[id] = append([]byte(nil), value...)
	}
	return out, nil
}

// Put writes one record and flushes the file
func (fc *FileCollection) Put(ctx context.Context, id string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.records[id] = append(json.RawMessage(nil), value...)
	return fc.flush()
}

// Delete removes one record; missing ids are not an error
func (fc *FileCollection) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	if _, ok := fc.records[id]; !ok {
		return nil
	}
	delete(fc.records, id)
	return fc.flush()
}

// Clear removes every record
func (fc *FileCollection) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.records = make(map[string]json.RawMessage)
	return fc.flush()
}

// Size returns the serialized size of the collection file in bytes
func (fc *FileCollection) Size(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	info, err := os.Stat(fc.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.NewStorageErrorWithCause("failed to stat collection file", err)
	}
	return info.Size(), nil
}

// Watch reloads the collection when another process rewrites the file
// and invokes onChange afterwards. Concurrent writers get last-write-wins
// semantics; watching only makes the local copy converge faster.
func (fc *FileCollection) Watch(onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewStorageErrorWithCause("failed to create file watcher", err)
	}
	if err := watcher.Add(filepath.Dir(fc.path)); err != nil {
		watcher.Close()
		return errors.NewStorageErrorWithCause("failed to watch storage directory", err)
	}

	fc.watcher = watcher
	fc.watchDone = make(chan struct{})

	go func() {
		defer close(fc.watchDone)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != fc.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				fc.mu.RLock()
				selfWrite := time.Since(fc.lastFlush) < 250*time.Millisecond
				fc.mu.RUnlock()
				if selfWrite {
					continue
				}
				if err := fc.load(); err != nil {
					fc.logger.Error("Failed to reload collection after external change", err, map[string]interface{}{
						"path": fc.path,
					})
					continue
				}
				fc.logger.Info("Reloaded collection after external change", map[string]interface{}{
					"path": fc.path,
				})
				if onChange != nil {
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fc.logger.Warn("File watcher error", map[string]interface{}{
					"error": fmt.Sprintf("%v", err),
				})
			}
		}
	}()

	return nil
}

// Close stops watching and releases resources
func (fc *FileCollection) Close() error {
	if fc.watcher != nil {
		if err := fc.watcher.Close(); err != nil {
			return err
		}
		<-fc.watchDone
		fc.watcher = nil
	}
	return nil
}

var _ interfaces.Collection = (*FileCollection)(nil)

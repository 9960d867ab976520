package mock

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xenosun/codeBeamer-offline-client/internal/domain"
	"github.com/xenosun/codeBeamer-offline-client/internal/port"
)

// RestAPI is a mock implementation of port.RestAPI
type RestAPI struct {
	GetFunc     func(path string) (json.RawMessage, error)
	PostFunc    func(path string, body interface{}) (json.RawMessage, error)
	GetBlobFunc func(path, accept string) ([]byte, error)
}

func (m *RestAPI) Get(path string) (json.RawMessage, error) {
	if m.GetFunc != nil {
		return m.GetFunc(path)
	}
	return nil, nil
}

func (m *RestAPI) Post(path string, body interface{}) (json.RawMessage, error) {
	if m.PostFunc != nil {
		return m.PostFunc(path, body)
	}
	return nil, nil
}

func (m *RestAPI) GetBlob(path, accept string) ([]byte, error) {
	if m.GetBlobFunc != nil {
		return m.GetBlobFunc(path, accept)
	}
	return nil, nil
}

// KeyValueStore is an in-memory implementation of port.KeyValueStore.
// Values round-trip through JSON like the real store.
type KeyValueStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

func NewKeyValueStore() *KeyValueStore {
	return &KeyValueStore{values: map[string][]byte{}}
}

func (m *KeyValueStore) Get(key string, out interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (m *KeyValueStore) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = raw
	return nil
}

func (m *KeyValueStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *KeyValueStore) Close() error { return nil }

// Keys returns the stored keys, for assertions on namespacing.
func (m *KeyValueStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys
}

// FileStore is an in-memory implementation of port.FileStore.
type FileStore struct {
	Dir   string
	mu    sync.Mutex
	files map[string][]byte

	StoreFileFunc func(dir, name string, data []byte) (string, error)
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir, files: map[string][]byte{}}
}

func (m *FileStore) BaseDir() string { return m.Dir }

func (m *FileStore) StoreFile(dir, name string, data []byte) (string, error) {
	if m.StoreFileFunc != nil {
		return m.StoreFileFunc(dir, name, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[dir+"/"+name] = data
	return "file://" + dir + "/" + name, nil
}

func (m *FileStore) ReadFile(dir, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[dir+"/"+name]
	if !ok {
		return nil, fmt.Errorf("no such file: %s/%s", dir, name)
	}
	return data, nil
}

func (m *FileStore) RemoveFile(dir, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, dir+"/"+name)
	return nil
}

func (m *FileStore) CheckFile(dir, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[dir+"/"+name]
	return ok
}

// ChunkUploader is a mock implementation of port.ChunkUploader
type ChunkUploader struct {
	UploadFunc func(file domain.UploadFile, data []byte, progress func(percent int)) error

	Uploaded []string
}

func (m *ChunkUploader) Upload(file domain.UploadFile, data []byte, progress func(percent int)) error {
	if m.UploadFunc != nil {
		return m.UploadFunc(file, data, progress)
	}
	m.Uploaded = append(m.Uploaded, file.FileName)
	if progress != nil {
		progress(100)
	}
	return nil
}

// Notifier is a mock implementation of port.Notifier
type Notifier struct {
	NotifyErrorFunc         func(header, message string)
	ServerRequestFailedFunc func(header, message string) port.Choice
	ConfirmFunc             func(header, message string) bool

	Errors []string
}

func (m *Notifier) NotifyError(header, message string) {
	m.Errors = append(m.Errors, message)
	if m.NotifyErrorFunc != nil {
		m.NotifyErrorFunc(header, message)
	}
}

func (m *Notifier) ServerRequestFailed(header, message string) port.Choice {
	if m.ServerRequestFailedFunc != nil {
		return m.ServerRequestFailedFunc(header, message)
	}
	return port.ChoiceIgnore
}

func (m *Notifier) Confirm(header, message string) bool {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(header, message)
	}
	return true
}

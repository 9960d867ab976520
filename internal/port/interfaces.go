package port

import (
	"encoding/json"

	"github.com/xenosun/codeBeamer-offline-client/internal/domain"
)

// RestAPI defines the network client contract. Implementations carry the
// session's bearer token on every call and map non-2xx responses to
// *domain.ServerError.
type RestAPI interface {
	// Get performs an authenticated GET against a server-relative path.
	Get(path string) (json.RawMessage, error)
	// Post performs an authenticated JSON POST against a server-relative path.
	Post(path string, body interface{}) (json.RawMessage, error)
	// GetBlob fetches binary content (attachments) with the given Accept header.
	GetBlob(path, accept string) ([]byte, error)
}

// KeyValueStore defines the persistent store contract. Values are
// structured documents; keys are namespaced by the caller.
type KeyValueStore interface {
	// Get decodes the value stored under key into out. The second return
	// is false when the key does not exist.
	Get(key string, out interface{}) (bool, error)
	Set(key string, value interface{}) error
	Remove(key string) error
	Close() error
}

// FileStore defines the device file system contract for attachments.
type FileStore interface {
	// BaseDir is the directory reserved for this application's attachments.
	BaseDir() string
	// StoreFile writes data under dir/name and returns the local file URL.
	// An already existing file is kept and its URL returned.
	StoreFile(dir, name string, data []byte) (string, error)
	ReadFile(dir, name string) ([]byte, error)
	RemoveFile(dir, name string) error
	CheckFile(dir, name string) bool
}

// ChunkUploader defines the resumable chunked transfer contract used by
// the sync engine. One call settles one file completely.
type ChunkUploader interface {
	// Upload pushes the file content in chunks, reporting progress in
	// percent as chunks complete.
	Upload(file domain.UploadFile, data []byte, progress func(percent int)) error
}

// Choice is the user's answer to a failed server request.
type Choice int

const (
	ChoiceIgnore Choice = iota
	ChoiceRetry
)

// Notifier surfaces failures and confirmation gates to the user. All
// failures end up as a dismissible alert; none shows a raw stack trace.
type Notifier interface {
	// NotifyError shows a blocking error alert.
	NotifyError(header, message string)
	// ServerRequestFailed presents an Ignore/Retry choice for a failed
	// list-fetch operation.
	ServerRequestFailed(header, message string) Choice
	// Confirm presents a yes/no gate (e.g. finishing with unvisited steps).
	Confirm(header, message string) bool
}

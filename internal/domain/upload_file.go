package domain

import (
	"fmt"
	"time"
)

// UploadFile is a file the tester attached to a test step, waiting to be
// uploaded with the test case's upload batch.
type UploadFile struct {
	// ConversationID groups all files uploaded together for one test
	// case. Every upload of a case's batch shares the same id.
	ConversationID string `json:"conversationId"`

	// Directory and stored (unique) file name on the device.
	Path     string `json:"path"`
	FileName string `json:"fileName"`

	// Original name shown to the user.
	VisibleFileName string `json:"visibleFileName"`
	FileSize        string `json:"fileSize"`

	// Thumbnail is the in-markup placeholder token ([!filename!]) spliced
	// into the actual-result markup for image attachments.
	Thumbnail string `json:"thumbnail,omitempty"`

	UploadProgress int        `json:"uploadProgress"`
	Uploaded       bool       `json:"uploaded"`
	UploadedAt     *time.Time `json:"uploadedAt,omitempty"`

	// Local preview URL.
	ImgSrc string `json:"imgsrc,omitempty"`
}

// ThumbnailToken builds the markup placeholder for a stored file name.
func ThumbnailToken(storedFileName string) string {
	return "[!" + storedFileName + "!]"
}

// FileSizeString renders a byte count the way the upload list displays it.
func FileSizeString(size int64) string {
	const (
		kb = 1 << 10
		mb = 1 << 20
	)
	switch {
	case size >= mb:
		return fmt.Sprintf("%.1f MB", float64(size)/mb)
	case size >= kb:
		return fmt.Sprintf("%.1f KB", float64(size)/kb)
	default:
		return fmt.Sprintf("%d B", size)
	}
}

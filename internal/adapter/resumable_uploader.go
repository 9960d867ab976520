package adapter

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xenosun/codeBeamer-offline-client/internal/domain"
	"github.com/xenosun/codeBeamer-offline-client/internal/logger"
	"github.com/xenosun/codeBeamer-offline-client/internal/session"
)

const uploadServletPath = "/rest/resumableUploadServlet"

// ResumableUploader implements port.ChunkUploader against the server's
// resumable upload servlet. Files are split into fixed-size chunks pushed
// over a bounded number of simultaneous streams; before each chunk is
// sent the server is asked whether it already holds it, so an interrupted
// upload resumes where it stopped.
type ResumableUploader struct {
	session      *session.Session
	httpClient   *http.Client
	chunkSize    int64
	simultaneous int
}

// NewResumableUploader creates an uploader with the given chunk size and
// number of simultaneous chunk streams per file.
func NewResumableUploader(s *session.Session, chunkSize int64, simultaneous int) *ResumableUploader {
	if chunkSize <= 0 {
		chunkSize = 1 << 20
	}
	if simultaneous <= 0 {
		simultaneous = 4
	}
	return &ResumableUploader{
		session:      s,
		httpClient:   &http.Client{Timeout: 5 * time.Minute},
		chunkSize:    chunkSize,
		simultaneous: simultaneous,
	}
}

// Upload pushes the file content in chunks. The progress callback is
// invoked with the overall percentage as chunks settle; any chunk failure
// fails the whole file.
func (u *ResumableUploader) Upload(file domain.UploadFile, data []byte, progress func(percent int)) error {
	totalSize := int64(len(data))
	totalChunks := int((totalSize + u.chunkSize - 1) / u.chunkSize)
	if totalChunks == 0 {
		totalChunks = 1
	}
	identifier := chunkIdentifier(totalSize, file.FileName)
	logger.Debug("upload: %s (%d bytes, %d chunks)", file.FileName, totalSize, totalChunks)

	chunks := make(chan int, totalChunks)
	for i := 1; i <= totalChunks; i++ {
		chunks <- i
	}
	close(chunks)

	var (
		wg       sync.WaitGroup
		done     int64
		firstErr error
		errOnce  sync.Once
	)
	workers := u.simultaneous
	if workers > totalChunks {
		workers = totalChunks
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for number := range chunks {
				if err := u.sendChunk(file, data, identifier, number, totalChunks, totalSize); err != nil {
					errOnce.Do(func() { firstErr = err })
					return
				}
				completed := atomic.AddInt64(&done, 1)
				if progress != nil {
					progress(int(completed * 100 / int64(totalChunks)))
				}
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return fmt.Errorf("chunked upload of %q failed: %w", file.VisibleFileName, firstErr)
	}
	return nil
}

// sendChunk checks chunk existence on the server and uploads it as a raw
// octet body when missing.
func (u *ResumableUploader) sendChunk(file domain.UploadFile, data []byte, identifier string, number, totalChunks int, totalSize int64) error {
	start := int64(number-1) * u.chunkSize
	end := start + u.chunkSize
	if end > totalSize {
		end = totalSize
	}
	chunk := data[start:end]

	params := u.chunkParams(file, identifier, number, totalChunks, totalSize, int64(len(chunk)))
	target := u.session.Base() + uploadServletPath + "?" + params.Encode()

	exists, err := u.chunkExists(target)
	if err != nil {
		return err
	}
	if exists {
		logger.Debug("upload: chunk %d/%d of %s already on server", number, totalChunks, file.FileName)
		return nil
	}

	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(chunk))
	if err != nil {
		return fmt.Errorf("failed to create chunk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	u.setAuthHeader(req)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return &domain.ServerError{Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &domain.ServerError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return nil
}

// chunkExists asks the servlet whether it already holds the chunk. A 2xx
// answer means the chunk is present; 404 and 204 mean it has to be sent.
func (u *ResumableUploader) chunkExists(target string) (bool, error) {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create chunk test request: %w", err)
	}
	u.setAuthHeader(req)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return false, &domain.ServerError{Message: err.Error()}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent, nil
}

func (u *ResumableUploader) chunkParams(file domain.UploadFile, identifier string, number, totalChunks int, totalSize, currentChunkSize int64) url.Values {
	params := url.Values{}
	params.Set("resumableChunkNumber", strconv.Itoa(number))
	params.Set("resumableChunkSize", strconv.FormatInt(u.chunkSize, 10))
	params.Set("resumableCurrentChunkSize", strconv.FormatInt(currentChunkSize, 10))
	params.Set("resumableTotalSize", strconv.FormatInt(totalSize, 10))
	params.Set("resumableTotalChunks", strconv.Itoa(totalChunks))
	params.Set("resumableIdentifier", identifier)
	params.Set("resumableFilename", file.FileName)
	params.Set("resumableRelativePath", file.FileName)
	params.Set("resumableType", "application/octet-stream")
	// The batch's conversation id correlates the uploaded files with the
	// test case they belong to.
	params.Set("conversationId", file.ConversationID)
	return params
}

func (u *ResumableUploader) setAuthHeader(req *http.Request) {
	if u.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+u.session.Token)
	}
}

var nonAlphanumeric = regexp.MustCompile(`[^0-9a-zA-Z_-]`)

func chunkIdentifier(size int64, fileName string) string {
	return strconv.FormatInt(size, 10) + "-" + nonAlphanumeric.ReplaceAllString(fileName, "")
}

package usecase_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenosun/codeBeamer-offline-client/internal/domain"
	"github.com/xenosun/codeBeamer-offline-client/internal/mock"
	"github.com/xenosun/codeBeamer-offline-client/internal/usecase"
)

// withUploads attaches files to the run's steps and stores their content
// in the file store.
func withUploads(t *testing.T, files *mock.FileStore, run *domain.DownloadedTestRun, caseIndex int, names ...string) {
	t.Helper()
	itc := &run.InitializedTestCases[caseIndex]
	conversationID := usecase.ConversationID(itc, caseIndex)
	for i, name := range names {
		step := &itc.TestStepsWithResults[i%len(itc.TestStepsWithResults)]
		_, err := files.StoreFile("/att", name, []byte("content of "+name))
		require.NoError(t, err)
		step.Uploads = append(step.Uploads, domain.UploadFile{
			ConversationID:  conversationID,
			Path:            "/att",
			FileName:        name,
			VisibleFileName: name,
		})
	}
}

func TestUpload_CollectUploadsByTestCases_SharesConversationID(t *testing.T) {
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})
	files := mock.NewFileStore("/att")
	upload := usecase.NewUploadService(sess, &mock.RestAPI{}, files, &mock.ChunkUploader{}, storage, &mock.Notifier{})
	run := newDownloadedRun(t, storage, 1, 2, 3)
	withUploads(t, files, run, 0, "a.png", "b.png", "c.txt")

	batches := upload.CollectUploadsByTestCases(run)

	require.Len(t, batches, 2)
	require.Len(t, batches[0].Uploads, 3)
	assert.Equal(t, "200_0", batches[0].ConversationID)
	for _, file := range batches[0].Uploads {
		assert.Equal(t, "200_0", file.ConversationID)
	}
	assert.Empty(t, batches[1].Uploads)
	assert.Empty(t, batches[1].ConversationID)
}

func TestUpload_UploadTestRun_MarksRunUploaded(t *testing.T) {
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})
	files := mock.NewFileStore("/att")
	uploader := &mock.ChunkUploader{}

	var savedBodies []map[string]interface{}
	api := &mock.RestAPI{
		PostFunc: func(path string, body interface{}) (json.RawMessage, error) {
			if path == "rest/testRunner/saveTestRun" {
				encoded, err := json.Marshal(body)
				require.NoError(t, err)
				var decoded map[string]interface{}
				require.NoError(t, json.Unmarshal(encoded, &decoded))
				savedBodies = append(savedBodies, decoded)
			}
			return json.RawMessage(`{}`), nil
		},
	}
	upload := usecase.NewUploadService(sess, api, files, uploader, storage, &mock.Notifier{})
	run := newDownloadedRun(t, storage, 42, 2, 2)
	withUploads(t, files, run, 0, "shot.png")
	run.InitializedTestCases[0].RunTimeMillis = 3000

	err := upload.UploadTestRun(run, nil)

	require.NoError(t, err)
	assert.True(t, run.Uploaded)
	assert.Equal(t, []string{"shot.png"}, uploader.Uploaded)
	require.Len(t, savedBodies, 2)

	first := savedBodies[0]
	assert.Equal(t, float64(42), first["task_id"])
	assert.Equal(t, float64(200), first["editedTestRunId"])
	assert.Equal(t, "200_0", first["uploadConversationId"])
	assert.Equal(t, "CUSTOM", first["endRunComment"])
	assert.Equal(t, "COMPLETED", first["endRunStatus"])
	assert.Equal(t, false, first["pauseRun"])
	assert.Equal(t, float64(3000), first["timeSpent"])
	assert.Nil(t, first["defaultResult"])
	assert.Nil(t, first["endRunResult"])

	// Per-case timestamps and the uploaded flag are persisted.
	stored, err := storage.SingleDownloadedTestRun(42)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Uploaded)
	assert.NotNil(t, stored.InitializedTestCases[0].UploadedAt)
}

func TestUpload_OrderedStepResultsInBody(t *testing.T) {
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})
	files := mock.NewFileStore("/att")
	runner := usecase.NewRunnerService(storage, files, &mock.Notifier{})

	var body map[string]interface{}
	api := &mock.RestAPI{
		PostFunc: func(path string, payload interface{}) (json.RawMessage, error) {
			if path == "rest/testRunner/saveTestRun" {
				encoded, _ := json.Marshal(payload)
				require.NoError(t, json.Unmarshal(encoded, &body))
			}
			return json.RawMessage(`{}`), nil
		},
	}
	upload := usecase.NewUploadService(sess, api, files, &mock.ChunkUploader{}, storage, &mock.Notifier{})
	run := newDownloadedRun(t, storage, 1, 1, 2)
	itc := &run.InitializedTestCases[0]
	itc.TestStepsWithResults[0].ActualResultMarkup = "looks good"
	runner.PassStep(&itc.TestStepsWithResults[0])
	itc.TestStepsWithResults[1].ActualResultMarkup = "button missing"
	runner.FailStep(&itc.TestStepsWithResults[1])

	require.NoError(t, upload.UploadTestRun(run, nil))

	require.NotNil(t, body)
	assert.Equal(t, []interface{}{"looks good", "button missing"}, body["actualResults"])
	assert.Equal(t, []interface{}{"PASSED", "FAILED"}, body["stepResult"])
}

func TestUpload_SkipsAlreadyUploadedFiles(t *testing.T) {
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})
	files := mock.NewFileStore("/att")
	uploader := &mock.ChunkUploader{}
	api := &mock.RestAPI{
		PostFunc: func(path string, body interface{}) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	}
	upload := usecase.NewUploadService(sess, api, files, uploader, storage, &mock.Notifier{})
	run := newDownloadedRun(t, storage, 1, 1, 2)
	withUploads(t, files, run, 0, "done.png", "pending.png")
	run.InitializedTestCases[0].TestStepsWithResults[0].Uploads[0].Uploaded = true

	require.NoError(t, upload.UploadTestRun(run, nil))

	assert.Equal(t, []string{"pending.png"}, uploader.Uploaded)
}

func TestUpload_FileFailureAbortsCase(t *testing.T) {
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})
	files := mock.NewFileStore("/att")
	uploader := &mock.ChunkUploader{
		UploadFunc: func(file domain.UploadFile, data []byte, progress func(percent int)) error {
			return &domain.ServerError{StatusCode: 500, Message: "disk full"}
		},
	}
	saveCalled := false
	api := &mock.RestAPI{
		PostFunc: func(path string, body interface{}) (json.RawMessage, error) {
			if path == "rest/testRunner/saveTestRun" {
				saveCalled = true
			}
			return json.RawMessage(`{}`), nil
		},
	}
	notifier := &mock.Notifier{}
	upload := usecase.NewUploadService(sess, api, files, uploader, storage, notifier)
	run := newDownloadedRun(t, storage, 1, 1, 1)
	withUploads(t, files, run, 0, "shot.png")

	err := upload.UploadTestRun(run, nil)

	require.Error(t, err)
	assert.False(t, saveCalled, "metadata must not be submitted when a file failed")
	assert.False(t, run.Uploaded)
	assert.NotEmpty(t, notifier.Errors)
}

func TestUpload_BugFailuresAreIndependent(t *testing.T) {
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})
	files := mock.NewFileStore("/att")

	var itemPosts, associationPosts int
	api := &mock.RestAPI{
		PostFunc: func(path string, body interface{}) (json.RawMessage, error) {
			switch path {
			case "rest/item":
				itemPosts++
				if itemPosts == 1 {
					return nil, &domain.ServerError{StatusCode: 500, Message: "rejected"}
				}
				return json.RawMessage(`{"uri": "/item/901"}`), nil
			case "rest/association":
				associationPosts++
				encoded, _ := json.Marshal(body)
				var assoc map[string]interface{}
				require.NoError(t, json.Unmarshal(encoded, &assoc))
				assert.Equal(t, "/item/100", assoc["from"])
				assert.Equal(t, "/item/901", assoc["to"])
				assert.Equal(t, "/association/type/superordinate to", assoc["type"])
				assert.Equal(t, true, assoc["propagatingSuspects"])
			}
			return json.RawMessage(`{}`), nil
		},
	}
	notifier := &mock.Notifier{}
	upload := usecase.NewUploadService(sess, api, files, &mock.ChunkUploader{}, storage, notifier)
	run := newDownloadedRun(t, storage, 1, 1, 1)
	run.InitializedTestCases[0].Bugs = []domain.TrackerItem{
		{Name: "first bug"},
		{Name: "second bug"},
	}

	require.NoError(t, upload.UploadTestRun(run, nil))

	assert.Equal(t, 2, itemPosts, "both bugs must be attempted")
	assert.Equal(t, 1, associationPosts, "only the created bug gets associated")
	assert.NotEmpty(t, notifier.Errors)
	assert.Equal(t, 100, run.InitializedTestCases[0].Bugs[1].UploadProgress)
}

func TestUpload_SaveFailureNotifies(t *testing.T) {
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})
	files := mock.NewFileStore("/att")
	api := &mock.RestAPI{
		PostFunc: func(path string, body interface{}) (json.RawMessage, error) {
			if path == "rest/testRunner/saveTestRun" {
				return nil, &domain.ServerError{StatusCode: 500, Message: "boom"}
			}
			return json.RawMessage(`{}`), nil
		},
	}
	notifier := &mock.Notifier{}
	upload := usecase.NewUploadService(sess, api, files, &mock.ChunkUploader{}, storage, notifier)
	run := newDownloadedRun(t, storage, 1, 1, 1)

	err := upload.UploadTestRun(run, nil)

	require.Error(t, err)
	assert.False(t, run.Uploaded)
	assert.Contains(t, notifier.Errors, "Failed to upload test run data to the server!")
}

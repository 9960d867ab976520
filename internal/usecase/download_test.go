package usecase_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenosun/codeBeamer-offline-client/internal/domain"
	"github.com/xenosun/codeBeamer-offline-client/internal/mock"
	"github.com/xenosun/codeBeamer-offline-client/internal/port"
	"github.com/xenosun/codeBeamer-offline-client/internal/usecase"
)

func TestDownload_ReplaceImageURLs_PrefersLocalCopy(t *testing.T) {
	sess := newTestSession()
	download := usecase.NewDownloadService(sess, &mock.RestAPI{}, mock.NewFileStore("/att"), nil, &mock.Notifier{})

	attachments := []domain.Attachment{
		{Name: "diagram.png", Path: "file:///att/diagram.png"},
		{Name: "missing.png"},
	}
	text := `<p><img alt="d" src="/cb/displayDocument/diagram.png"/></p>` +
		`<p><img src="/cb/displayDocument/missing.png"/></p>`

	got := download.ReplaceImageURLs(text, attachments)

	assert.Contains(t, got, `src="file:///att/diagram.png"`)
	// No local copy: rewritten to the fully qualified server URL.
	assert.Contains(t, got, `src="https://cb.example.com/cb/displayDocument/missing.png"`)
}

func TestDownload_ReplaceImageURLs_NoImages(t *testing.T) {
	sess := newTestSession()
	download := usecase.NewDownloadService(sess, &mock.RestAPI{}, mock.NewFileStore("/att"), nil, &mock.Notifier{})

	text := "<p>plain text, nothing to rewrite</p>"
	assert.Equal(t, text, download.ReplaceImageURLs(text, nil))
	assert.Equal(t, "", download.ReplaceImageURLs("", nil))
}

func TestDownload_ConvertWikiToHTML(t *testing.T) {
	sess := newTestSession()
	api := &mock.RestAPI{
		PostFunc: func(path string, body interface{}) (json.RawMessage, error) {
			require.Equal(t, "rest/convertWikiToHTML", path)
			encoded, _ := json.Marshal(body)
			var req map[string]string
			require.NoError(t, json.Unmarshal(encoded, &req))
			assert.Equal(t, "!image.png!", req["content"])
			assert.Equal(t, "[ISSUE:77]", req["entityRef"])
			return json.RawMessage(`{"content": "<img src=\"/cb/image.png\"/>"}`), nil
		},
	}
	download := usecase.NewDownloadService(sess, api, mock.NewFileStore("/att"), nil, &mock.Notifier{})
	attachments := []domain.Attachment{{Name: "image.png", Path: "file:///att/image.png"}}

	html, err := download.ConvertWikiToHTML("!image.png!", attachments, 77)

	require.NoError(t, err)
	assert.Equal(t, `<img src="file:///att/image.png"/>`, html)
}

func TestDownload_ConvertWikiToHTML_EmptyShortCircuits(t *testing.T) {
	sess := newTestSession()
	api := &mock.RestAPI{
		PostFunc: func(path string, body interface{}) (json.RawMessage, error) {
			t.Fatal("no request expected for empty markup")
			return nil, nil
		},
	}
	download := usecase.NewDownloadService(sess, api, mock.NewFileStore("/att"), nil, &mock.Notifier{})

	html, err := download.ConvertWikiToHTML("", nil, 77)

	require.NoError(t, err)
	assert.Empty(t, html)
}

func initResponse(runID, caseIndex int) string {
	childID := 200 + caseIndex
	return fmt.Sprintf(`{
		"testRun": {"id": %d, "uri": "/item/%d", "name": "Run"},
		"childTestRun": {"id": %d, "uri": "/item/%d"},
		"testCaseTrackerItem": {"id": %d, "uri": "/item/%d", "name": "Case"},
		"testStepList": [{"actionPreview": "do it"}]
	}`, runID, runID, childID, childID, 100+caseIndex, 100+caseIndex)
}

func TestDownload_DownloadTestRuns_PersistsSnapshotAndSuspends(t *testing.T) {
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})

	var suspendBody interface{}
	api := &mock.RestAPI{
		GetFunc: func(path string) (json.RawMessage, error) {
			if strings.HasPrefix(path, "rest/testRunner/initTestRunner/42/") {
				caseIndex := int(path[len(path)-1] - '0')
				return json.RawMessage(initResponse(42, caseIndex)), nil
			}
			return nil, fmt.Errorf("unexpected GET %s", path)
		},
		PostFunc: func(path string, body interface{}) (json.RawMessage, error) {
			switch {
			case path == "rest/offline/testRunner/setTestRunStatus/42":
				suspendBody = body
				return json.RawMessage(`{}`), nil
			case path == "rest/convertWikiToHTML":
				return json.RawMessage(`{"content": ""}`), nil
			}
			return nil, fmt.Errorf("unexpected POST %s", path)
		},
	}
	download := usecase.NewDownloadService(sess, api, mock.NewFileStore("/att"), storage, &mock.Notifier{})

	testRun := domain.TestRun{
		ID: 42, URI: "/item/42", Name: "Smoke",
		TestCases: []domain.TestCase{{ID: 100}, {ID: 101}},
	}
	var progressCalls []int
	err := download.DownloadTestRuns([]domain.TestRun{testRun}, func(completed, total int) {
		progressCalls = append(progressCalls, completed)
	})

	require.NoError(t, err)
	assert.Equal(t, "Suspended", suspendBody)
	assert.Equal(t, []int{1}, progressCalls)

	stored, err := storage.SingleDownloadedTestRun(42)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Smoke", stored.TestRunName)
	assert.False(t, stored.DownloadedAt.IsZero())
	require.Len(t, stored.InitializedTestCases, 2)
	assert.Equal(t, 201, stored.InitializedTestCases[1].ChildTestRun.ID)
}

func TestDownload_Redownload_ReplacesSnapshot(t *testing.T) {
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})
	require.NoError(t, storage.SaveSingleDownloadedTestRun(domain.DownloadedTestRun{
		TestRunID: 42, TestRunName: "stale",
	}))

	api := &mock.RestAPI{
		GetFunc: func(path string) (json.RawMessage, error) {
			return json.RawMessage(initResponse(42, 0)), nil
		},
		PostFunc: func(path string, body interface{}) (json.RawMessage, error) {
			return json.RawMessage(`{"content": ""}`), nil
		},
	}
	download := usecase.NewDownloadService(sess, api, mock.NewFileStore("/att"), storage, &mock.Notifier{})

	testRun := domain.TestRun{ID: 42, Name: "fresh", TestCases: []domain.TestCase{{ID: 100}}}
	require.NoError(t, download.DownloadTestRuns([]domain.TestRun{testRun}, nil))

	runs, err := storage.DownloadedTestRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1, "re-download must replace, not duplicate")
	assert.Equal(t, "fresh", runs[0].TestRunName)
}

func TestDownload_InitFailure_RetryThenIgnore(t *testing.T) {
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})

	attempts := 0
	api := &mock.RestAPI{
		GetFunc: func(path string) (json.RawMessage, error) {
			attempts++
			return nil, &domain.ServerError{StatusCode: 500, Message: "boom"}
		},
	}
	choices := []port.Choice{port.ChoiceRetry, port.ChoiceRetry, port.ChoiceIgnore}
	notifier := &mock.Notifier{
		ServerRequestFailedFunc: func(header, message string) port.Choice {
			choice := choices[0]
			choices = choices[1:]
			return choice
		},
	}
	download := usecase.NewDownloadService(sess, api, mock.NewFileStore("/att"), storage, notifier)

	testRun := domain.TestRun{ID: 42, TestCases: []domain.TestCase{{ID: 100}}}
	err := download.DownloadTestRuns([]domain.TestRun{testRun}, nil)

	require.Error(t, err)
	assert.Equal(t, 3, attempts, "two retries then ignore")

	stored, err := storage.SingleDownloadedTestRun(42)
	require.NoError(t, err)
	assert.Nil(t, stored, "a failed materialization must not be persisted")
}

func TestDownload_NoTestCasesIsAnError(t *testing.T) {
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})
	download := usecase.NewDownloadService(sess, &mock.RestAPI{}, mock.NewFileStore("/att"), storage, &mock.Notifier{})

	err := download.DownloadTestRuns([]domain.TestRun{{ID: 42}}, nil)

	require.Error(t, err)
}

func TestDownload_DeleteDownloadedTestRun_PurgesAttachments(t *testing.T) {
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})
	files := mock.NewFileStore("/att")
	_, err := files.StoreFile("/att", "evidence.png", []byte("data"))
	require.NoError(t, err)

	run := domain.DownloadedTestRun{
		TestRunID: 42,
		InitializedTestRun: domain.InitializedTestRun{
			TestRun: domain.TestRun{
				Comments: []domain.Comment{{
					Attachments: []domain.Attachment{{
						Name: "evidence.png", Directory: "/att", Path: "file:///att/evidence.png",
					}},
				}},
			},
		},
	}
	require.NoError(t, storage.SaveSingleDownloadedTestRun(run))
	require.NoError(t, storage.SaveSingleDownloadedTestRun(domain.DownloadedTestRun{TestRunID: 7}))
	download := usecase.NewDownloadService(sess, &mock.RestAPI{}, files, storage, &mock.Notifier{})

	require.NoError(t, download.DeleteDownloadedTestRun(42))

	runs, err := storage.DownloadedTestRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 7, runs[0].TestRunID)
	assert.False(t, files.CheckFile("/att", "evidence.png"))
}

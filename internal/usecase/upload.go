package usecase

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xenosun/codeBeamer-offline-client/internal/domain"
	"github.com/xenosun/codeBeamer-offline-client/internal/logger"
	"github.com/xenosun/codeBeamer-offline-client/internal/port"
	"github.com/xenosun/codeBeamer-offline-client/internal/session"
)

// TestCaseWithUploads is one test case's upload batch: every file attached
// to any of its steps, all sharing the batch's conversation id.
type TestCaseWithUploads struct {
	CaseIndex      int
	Uploads        []*domain.UploadFile
	ConversationID string
}

// UploadService is the sync engine: it pushes a completed offline snapshot
// (results, attachments, reported bugs) back to the server, case by case.
type UploadService struct {
	session  *session.Session
	api      port.RestAPI
	files    port.FileStore
	uploader port.ChunkUploader
	storage  *StorageService
	notifier port.Notifier
}

// NewUploadService creates an upload service.
func NewUploadService(s *session.Session, api port.RestAPI, files port.FileStore, uploader port.ChunkUploader, storage *StorageService, notifier port.Notifier) *UploadService {
	return &UploadService{session: s, api: api, files: files, uploader: uploader, storage: storage, notifier: notifier}
}

// CollectUploadsByTestCases gathers each case's upload batch. The batch's
// conversation id is the first encountered upload's id; cases without
// uploads get an empty batch so the metadata POST still happens for them.
func (u *UploadService) CollectUploadsByTestCases(run *domain.DownloadedTestRun) []TestCaseWithUploads {
	batches := make([]TestCaseWithUploads, 0, len(run.InitializedTestCases))
	for ci := range run.InitializedTestCases {
		itc := &run.InitializedTestCases[ci]
		batch := TestCaseWithUploads{CaseIndex: ci}
		for si := range itc.TestStepsWithResults {
			step := &itc.TestStepsWithResults[si]
			for ui := range step.Uploads {
				if batch.ConversationID == "" {
					batch.ConversationID = step.Uploads[ui].ConversationID
				}
				batch.Uploads = append(batch.Uploads, &step.Uploads[ui])
			}
		}
		batches = append(batches, batch)
	}
	return batches
}

// UploadTestRun pushes the whole snapshot: cases are uploaded one after
// another, and once every case settled the snapshot is marked uploaded and
// persisted. The progress callback fires per settled case.
func (u *UploadService) UploadTestRun(run *domain.DownloadedTestRun, progress func(completed, total int)) error {
	batches := u.CollectUploadsByTestCases(run)
	for _, batch := range batches {
		if err := u.uploadTestCase(run, batch); err != nil {
			return err
		}
		if progress != nil {
			progress(batch.CaseIndex+1, len(batches))
		}
	}
	run.Uploaded = true
	return u.storage.UpdateDownloadedTestRun(*run)
}

// uploadTestCase settles one case: its files first, then the result
// metadata, then the reported bugs. The partial state is persisted after
// every case so an interrupted upload resumes where it stopped.
func (u *UploadService) uploadTestCase(run *domain.DownloadedTestRun, batch TestCaseWithUploads) error {
	itc := &run.InitializedTestCases[batch.CaseIndex]

	if err := u.uploadFiles(batch); err != nil {
		u.notifier.NotifyError("An error occurred!", "Failed to upload a file to the server!")
		return err
	}
	if err := u.saveTestRunResult(&run.InitializedTestRun, itc, batch.ConversationID); err != nil {
		if se, ok := domain.IsServerError(err); ok {
			logger.Err(err, "upload: failed to upload test run data, status %d", se.StatusCode)
			u.notifier.NotifyError("An error occurred!", "Failed to upload test run data to the server!")
		}
		return err
	}
	u.uploadReportedBugs(itc)

	if itc.UploadedAt == nil {
		now := time.Now()
		itc.UploadedAt = &now
	}
	return u.storage.UpdateDownloadedTestRun(*run)
}

// uploadFiles pushes the batch sequentially through the chunked transfer.
// Files already uploaded by an earlier attempt are skipped; the first
// failure aborts the case so the user can retry it as a whole.
func (u *UploadService) uploadFiles(batch TestCaseWithUploads) error {
	for _, file := range batch.Uploads {
		if file.Uploaded {
			logger.Debug("upload: skipping already uploaded file %q", file.FileName)
			continue
		}
		data, err := u.files.ReadFile(file.Path, file.FileName)
		if err != nil {
			return fmt.Errorf("failed to read file %q: %w", file.FileName, err)
		}
		err = u.uploader.Upload(*file, data, func(percent int) {
			file.UploadProgress = percent
		})
		if err != nil {
			return err
		}
		file.Uploaded = true
		now := time.Now()
		file.UploadedAt = &now
	}
	return nil
}

// saveTestRunResult submits the case's result metadata: ordered actual
// results and step results, the batch's conversation id, the conclusion
// and elapsed time. The end-run status defaults to COMPLETED.
func (u *UploadService) saveTestRunResult(run *domain.InitializedTestRun, itc *domain.InitializedTestCase, conversationID string) error {
	parentID, err := domain.URI2ID(run.TestRun.URI)
	if err != nil {
		parentID = run.TestRun.ID
	}
	childID, err := domain.URI2ID(itc.ChildTestRun.URI)
	if err != nil {
		childID = itc.ChildTestRun.ID
	}

	actualResults := make([]string, len(itc.TestStepsWithResults))
	stepResults := make([]domain.StepResult, len(itc.TestStepsWithResults))
	for i, step := range itc.TestStepsWithResults {
		actualResults[i] = step.ActualResultMarkup
		stepResults[i] = step.Result
	}

	body := map[string]interface{}{
		"task_id":              parentID,
		"editedTestRunId":      childID,
		"actualResults":        actualResults,
		"stepResult":           stepResults,
		"uploadConversationId": conversationID,
		"defaultResult":        nil,
		"conclusion":           run.Conclusion,
		"endRunComment":        "CUSTOM",
		"endRunStatus":         run.ChildTestRunStatus.String(),
		"endRunResult":         nil,
		"pauseRun":             false,
		"timeSpent":            itc.RunTimeMillis,
	}
	_, err = u.api.Post("rest/testRunner/saveTestRun", body)
	return err
}

// uploadReportedBugs creates each reported bug on the server and links it
// to the test case's tracker item. Every bug is an independent attempt; a
// failed one is reported and the rest still go through.
func (u *UploadService) uploadReportedBugs(itc *domain.InitializedTestCase) {
	for i := range itc.Bugs {
		bug := &itc.Bugs[i]
		raw, err := u.api.Post("rest/item", bug.StripClientFields())
		if err != nil {
			logger.Err(err, "upload: failed to upload bug %q", bug.Name)
			u.notifier.NotifyError("An error occurred!", "Failed to upload a bug to the server!")
			continue
		}
		bug.UploadProgress = 100

		var created struct {
			URI string `json:"uri"`
		}
		if err := json.Unmarshal(raw, &created); err != nil {
			logger.Err(err, "upload: failed to decode created bug %q", bug.Name)
			continue
		}
		if err := u.associateBug(itc, created.URI); err != nil {
			logger.Err(err, "upload: failed to associate bug %q", bug.Name)
			u.notifier.NotifyError("An error occurred!", "Failed to associate a bug with the test case!")
		}
	}
}

func (u *UploadService) associateBug(itc *domain.InitializedTestCase, bugURI string) error {
	body := map[string]interface{}{
		"from":                itc.TestCaseTrackerItem.URI,
		"to":                  bugURI,
		"type":                "/association/type/superordinate to",
		"propagatingSuspects": true,
		"description":         "Reported bug",
		"descFormat":          "Plain",
	}
	_, err := u.api.Post("rest/association", body)
	return err
}

package usecase

import (
	"fmt"
	"strings"

	"github.com/xenosun/codeBeamer-offline-client/internal/domain"
	"github.com/xenosun/codeBeamer-offline-client/internal/logger"
	"github.com/xenosun/codeBeamer-offline-client/internal/port"
)

// CaseState is the execution state of one initialized test case.
type CaseState int

const (
	// CaseNotStarted: no step visited yet.
	CaseNotStarted CaseState = iota
	// CaseInProgress: at least one but not all steps visited.
	CaseInProgress
	// CaseFinished: every step visited; result and status are set.
	CaseFinished
)

// RunSummary is the aggregate progress of a downloaded test run.
type RunSummary struct {
	TotalRunTimeMillis int64
	CompletedTestRuns  int
	Finished           bool
	Failed             bool
}

// RunnerService is the execution state machine. It governs stepwise
// progress through a test case's steps and the aggregate completion of a
// test run, operating entirely against the locally persisted snapshot.
type RunnerService struct {
	storage  *StorageService
	files    port.FileStore
	notifier port.Notifier
}

// NewRunnerService creates a runner service.
func NewRunnerService(storage *StorageService, files port.FileStore, notifier port.Notifier) *RunnerService {
	return &RunnerService{storage: storage, files: files, notifier: notifier}
}

// CaseState reports where a test case stands in its lifecycle. A finished
// case never reverts: visited flags are only ever set, never cleared.
func (r *RunnerService) CaseState(itc *domain.InitializedTestCase) CaseState {
	visited := 0
	for _, step := range itc.TestStepsWithResults {
		if step.Visited {
			visited++
		}
	}
	switch {
	case visited == 0:
		return CaseNotStarted
	case visited < len(itc.TestStepsWithResults):
		return CaseInProgress
	default:
		return CaseFinished
	}
}

// PassStep records a passing step: visited, passed, result PASSED. When
// the step auto-copies expected results and no actual result was entered,
// the expected result is copied over.
func (r *RunnerService) PassStep(step *domain.TestStepWithResult) {
	step.Passed = true
	step.Result = domain.StepResultPassed
	step.Visited = true
	if step.AutoCopyExpectedResults && strings.TrimSpace(step.ActualResultMarkup) == "" {
		step.ActualResultMarkup = step.ExpectedResultMarkup
		step.ActualResultPreview = step.ExpectedResultPreview
	}
}

// FailStep records a failing step: visited, not passed, result FAILED.
func (r *RunnerService) FailStep(step *domain.TestStepWithResult) {
	step.Passed = false
	step.Result = domain.StepResultFailed
	step.Visited = true
}

// FirstUnvisitedStepIndex returns the index execution should jump back
// to, or -1 when every step is visited.
func (r *RunnerService) FirstUnvisitedStepIndex(itc *domain.InitializedTestCase) int {
	for i, step := range itc.TestStepsWithResults {
		if !step.Visited {
			return i
		}
	}
	return -1
}

// collectProgress scans the steps once: finished when none is unvisited,
// failed when any visited step did not pass.
func collectProgress(itc *domain.InitializedTestCase) (finished, failed bool) {
	finished = true
	for _, step := range itc.TestStepsWithResults {
		if !step.Visited {
			return false, failed
		}
		if !step.Passed {
			failed = true
		}
	}
	return finished, failed
}

// IsAllTestStepDone records the elapsed time on the case and, when every
// step is visited, sets the child run's result (FAILED if any step
// failed, else PASSED) and status Finished. Returns false while any step
// is unvisited.
func (r *RunnerService) IsAllTestStepDone(itc *domain.InitializedTestCase, timeSpentMillis int64) bool {
	itc.RunTimeMillis = timeSpentMillis

	finished, failed := collectProgress(itc)
	if !finished {
		return false
	}
	if failed {
		itc.ChildTestRun.Result = domain.ResultFailed
	} else {
		itc.ChildTestRun.Result = domain.ResultPassed
	}
	itc.ChildTestRun.Status = domain.StatusFinished
	return true
}

// FinishTestCase evaluates the finish gate: a fully done case finishes
// immediately; otherwise the user is asked to confirm. Declining jumps
// back to the first unvisited step (returned as jumpTo) and aborts the
// finish; accepting force-finishes with the result left as computed. On
// finish the snapshot is flushed to the persistent store.
func (r *RunnerService) FinishTestCase(run *domain.DownloadedTestRun, itc *domain.InitializedTestCase, timeSpentMillis int64) (finished bool, jumpTo int, err error) {
	if r.IsAllTestStepDone(itc, timeSpentMillis) {
		return true, -1, r.storage.UpdateDownloadedTestRun(*run)
	}
	confirmed := r.notifier.Confirm(
		"Finish Test Run",
		"There are incomplete test steps. Are you sure you want to finish the test?",
	)
	if !confirmed {
		return false, r.FirstUnvisitedStepIndex(itc), nil
	}
	itc.ChildTestRun.Status = domain.StatusFinished
	return true, -1, r.storage.UpdateDownloadedTestRun(*run)
}

// Summarize aggregates all cases of a downloaded run: total run time, how
// many cases carry a result, whether every case is finished and whether
// any finished case failed.
func (r *RunnerService) Summarize(run *domain.DownloadedTestRun) RunSummary {
	summary := RunSummary{Finished: true}
	for _, itc := range run.InitializedTestCases {
		summary.TotalRunTimeMillis += itc.RunTimeMillis
		if itc.ChildTestRun.Result.IsZero() {
			summary.Finished = false
			continue
		}
		if itc.ChildTestRun.Result.ID == domain.ResultFailed.ID {
			summary.Failed = true
		}
		summary.CompletedTestRuns++
	}
	return summary
}

// ActualizeTestRunFields folds the summary back into the run-level
// snapshot: Completed once every case is finished (result FAILED if any
// case failed, else PASSED), In Progress while some but not all leaf
// items are done.
func (r *RunnerService) ActualizeTestRunFields(run *domain.DownloadedTestRun) RunSummary {
	summary := r.Summarize(run)
	itr := &run.InitializedTestRun
	itr.TotalRunTimeMillis = summary.TotalRunTimeMillis
	itr.CompletedTestRuns = summary.CompletedTestRuns

	if summary.Finished {
		itr.TestRunStatus = "Completed"
		itr.TestRun.Status = domain.StatusFinished
		if summary.Failed {
			itr.TestRun.Result = domain.ResultFailed
		} else {
			itr.TestRun.Result = domain.ResultPassed
		}
		return summary
	}
	if summary.CompletedTestRuns == len(itr.LeafChildTrackerItems) && len(itr.LeafChildTrackerItems) > 0 {
		itr.TestRunStatus = "Completed"
	} else if summary.CompletedTestRuns > 0 {
		itr.TestRunStatus = "In Progress"
	}
	return summary
}

// Flush persists the current in-memory snapshot. Called on the
// user-visible transitions: case finish, finish-and-leave, jump to the
// next case.
func (r *RunnerService) Flush(run *domain.DownloadedTestRun) error {
	return r.storage.UpdateDownloadedTestRun(*run)
}

// ConversationID builds the upload grouping key of a test case: the
// case's child run id plus the case index.
func ConversationID(itc *domain.InitializedTestCase, caseIndex int) string {
	id, err := domain.URI2ID(itc.ChildTestRun.URI)
	if err != nil {
		id = itc.ChildTestRun.ID
	}
	return fmt.Sprintf("%d_%d", id, caseIndex)
}

// AddAttachmentToStep stores the picked file in the application's
// attachment directory under a unique name and records the upload on the
// step. Image attachments get their thumbnail token appended to the
// actual result markup so the reference survives the upload.
func (r *RunnerService) AddAttachmentToStep(itc *domain.InitializedTestCase, caseIndex int, step *domain.TestStepWithResult, fileName string, data []byte) (*domain.UploadFile, error) {
	uniqueName := domain.UniqueFileName(fileName)
	localURL, err := r.files.StoreFile(r.files.BaseDir(), uniqueName, data)
	if err != nil {
		r.notifier.NotifyError("An error occurred!", "Failed to store file!")
		return nil, err
	}

	upload := domain.UploadFile{
		ConversationID:  ConversationID(itc, caseIndex),
		Path:            r.files.BaseDir(),
		FileName:        uniqueName,
		VisibleFileName: fileName,
		FileSize:        domain.FileSizeString(int64(len(data))),
		Thumbnail:       domain.ThumbnailToken(uniqueName),
		ImgSrc:          localURL,
	}
	step.Uploads = append(step.Uploads, upload)

	if domain.IsImageExtension(fileName) {
		if step.ActualResultMarkup != "" {
			step.ActualResultMarkup += " "
		}
		step.ActualResultMarkup += upload.Thumbnail
	}
	return &step.Uploads[len(step.Uploads)-1], nil
}

// RemoveAttachmentFromStep deletes the stored file, drops the upload from
// the step and strips its thumbnail token from the actual result markup.
func (r *RunnerService) RemoveAttachmentFromStep(step *domain.TestStepWithResult, upload domain.UploadFile) {
	if err := r.files.RemoveFile(upload.Path, upload.FileName); err != nil {
		logger.Err(err, "runner: failed to remove attachment file %q", upload.FileName)
	}
	for i := range step.Uploads {
		if step.Uploads[i].FileName == upload.FileName {
			step.Uploads = append(step.Uploads[:i], step.Uploads[i+1:]...)
			break
		}
	}
	step.ActualResultMarkup = strings.Replace(step.ActualResultMarkup, upload.Thumbnail, "", 1)
	step.ActualResultMarkup = strings.TrimSpace(step.ActualResultMarkup)
}

// ReportBug appends a bug to the case's reported bug list, pre-filled
// from the cached creation schema of the given tracker so required
// defaults are preserved. The bug is uploaded later by the sync engine.
func (r *RunnerService) ReportBug(itc *domain.InitializedTestCase, schema *domain.NewItemSchema, name, description string) domain.TrackerItem {
	bug := domain.TrackerItem{}
	if schema != nil {
		bug = schema.Item
	}
	bug.Name = name
	bug.Description = description
	bug.DescFormat = "Wiki"
	if itc.ChildTestRun.Versions != "" {
		bug.DetectedIn = []string{itc.ChildTestRun.Versions}
	}
	itc.Bugs = append(itc.Bugs, bug)
	return bug
}

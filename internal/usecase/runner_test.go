package usecase_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenosun/codeBeamer-offline-client/internal/domain"
	"github.com/xenosun/codeBeamer-offline-client/internal/mock"
	"github.com/xenosun/codeBeamer-offline-client/internal/session"
	"github.com/xenosun/codeBeamer-offline-client/internal/usecase"
)

func newTestSession() *session.Session {
	s := session.New("https://cb.example.com/cb")
	s.Token = "test-token"
	s.CurrentUser = &domain.User{ID: 10, Name: "tester"}
	return s
}

// newDownloadedRun builds a stored snapshot with the given number of cases
// and steps per case.
func newDownloadedRun(t *testing.T, storage *usecase.StorageService, runID, cases, steps int) *domain.DownloadedTestRun {
	t.Helper()
	run := domain.DownloadedTestRun{
		TestRunID:   runID,
		TestRunName: fmt.Sprintf("Run %d", runID),
		InitializedTestRun: domain.InitializedTestRun{
			TestRun: domain.TestRun{ID: runID, URI: fmt.Sprintf("/item/%d", runID)},
		},
	}
	for c := 0; c < cases; c++ {
		itc := domain.InitializedTestCase{
			TestCaseTrackerItem: domain.TestCase{
				ID:   100 + c,
				URI:  fmt.Sprintf("/item/%d", 100+c),
				Name: fmt.Sprintf("Case %d", c+1),
			},
			ChildTestRun: domain.TestRun{
				ID:  200 + c,
				URI: fmt.Sprintf("/item/%d", 200+c),
			},
		}
		for s := 0; s < steps; s++ {
			itc.TestStepsWithResults = append(itc.TestStepsWithResults, domain.TestStepWithResult{
				TestStep: domain.TestStep{
					ActionPreview:         fmt.Sprintf("action %d", s+1),
					ExpectedResultPreview: fmt.Sprintf("expected %d", s+1),
				},
			})
		}
		run.InitializedTestCases = append(run.InitializedTestCases, itc)
		run.InitializedTestRun.LeafChildTrackerItems = append(
			run.InitializedTestRun.LeafChildTrackerItems,
			domain.TrackerItem{URI: itc.TestCaseTrackerItem.URI},
		)
	}
	require.NoError(t, storage.SaveSingleDownloadedTestRun(run))
	stored, err := storage.SingleDownloadedTestRun(runID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	return stored
}

func TestRunner_PassStep_AutoCopiesExpectedResult(t *testing.T) {
	runner := usecase.NewRunnerService(nil, mock.NewFileStore("/tmp/att"), &mock.Notifier{})
	step := &domain.TestStepWithResult{
		TestStep: domain.TestStep{
			ExpectedResultMarkup:    "expected markup",
			ExpectedResultPreview:   "expected preview",
			AutoCopyExpectedResults: true,
		},
	}

	runner.PassStep(step)

	assert.True(t, step.Visited)
	assert.True(t, step.Passed)
	assert.Equal(t, domain.StepResultPassed, step.Result)
	assert.Equal(t, "expected markup", step.ActualResultMarkup)
	assert.Equal(t, "expected preview", step.ActualResultPreview)
}

func TestRunner_PassStep_KeepsEnteredActualResult(t *testing.T) {
	runner := usecase.NewRunnerService(nil, mock.NewFileStore("/tmp/att"), &mock.Notifier{})
	step := &domain.TestStepWithResult{
		TestStep: domain.TestStep{
			ExpectedResultMarkup:    "expected markup",
			ActualResultMarkup:      "what actually happened",
			AutoCopyExpectedResults: true,
		},
	}

	runner.PassStep(step)

	assert.Equal(t, "what actually happened", step.ActualResultMarkup)
}

func TestRunner_FailStep(t *testing.T) {
	runner := usecase.NewRunnerService(nil, mock.NewFileStore("/tmp/att"), &mock.Notifier{})
	step := &domain.TestStepWithResult{}

	runner.FailStep(step)

	assert.True(t, step.Visited)
	assert.False(t, step.Passed)
	assert.Equal(t, domain.StepResultFailed, step.Result)
}

func TestRunner_CaseState(t *testing.T) {
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})
	runner := usecase.NewRunnerService(storage, mock.NewFileStore("/tmp/att"), &mock.Notifier{})
	run := newDownloadedRun(t, storage, 1, 1, 3)
	itc := &run.InitializedTestCases[0]

	assert.Equal(t, usecase.CaseNotStarted, runner.CaseState(itc))

	runner.PassStep(&itc.TestStepsWithResults[0])
	assert.Equal(t, usecase.CaseInProgress, runner.CaseState(itc))

	runner.PassStep(&itc.TestStepsWithResults[1])
	runner.FailStep(&itc.TestStepsWithResults[2])
	assert.Equal(t, usecase.CaseFinished, runner.CaseState(itc))
}

func TestRunner_IsAllTestStepDone_FailedStepFailsCase(t *testing.T) {
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})
	runner := usecase.NewRunnerService(storage, mock.NewFileStore("/tmp/att"), &mock.Notifier{})
	run := newDownloadedRun(t, storage, 1, 1, 2)
	itc := &run.InitializedTestCases[0]

	runner.PassStep(&itc.TestStepsWithResults[0])
	assert.False(t, runner.IsAllTestStepDone(itc, 1000))

	runner.FailStep(&itc.TestStepsWithResults[1])
	assert.True(t, runner.IsAllTestStepDone(itc, 5000))

	assert.Equal(t, int64(5000), itc.RunTimeMillis)
	assert.Equal(t, domain.ResultFailed, itc.ChildTestRun.Result)
	assert.Equal(t, domain.StatusFinished, itc.ChildTestRun.Status)
}

func TestRunner_FinishTestCase_DeclineJumpsToFirstUnvisitedStep(t *testing.T) {
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})
	notifier := &mock.Notifier{
		ConfirmFunc: func(header, message string) bool { return false },
	}
	runner := usecase.NewRunnerService(storage, mock.NewFileStore("/tmp/att"), notifier)
	run := newDownloadedRun(t, storage, 1, 1, 3)
	itc := &run.InitializedTestCases[0]

	runner.PassStep(&itc.TestStepsWithResults[0])
	runner.PassStep(&itc.TestStepsWithResults[2])

	finished, jumpTo, err := runner.FinishTestCase(run, itc, 1000)

	require.NoError(t, err)
	assert.False(t, finished)
	assert.Equal(t, 1, jumpTo)
	assert.True(t, itc.ChildTestRun.Result.IsZero())
}

func TestRunner_FinishTestCase_ConfirmForcesFinish(t *testing.T) {
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})
	notifier := &mock.Notifier{
		ConfirmFunc: func(header, message string) bool { return true },
	}
	runner := usecase.NewRunnerService(storage, mock.NewFileStore("/tmp/att"), notifier)
	run := newDownloadedRun(t, storage, 1, 1, 3)
	itc := &run.InitializedTestCases[0]

	runner.PassStep(&itc.TestStepsWithResults[0])

	finished, _, err := runner.FinishTestCase(run, itc, 1000)

	require.NoError(t, err)
	assert.True(t, finished)
	assert.Equal(t, domain.StatusFinished, itc.ChildTestRun.Status)

	// Flushed to the store.
	stored, err := storage.SingleDownloadedTestRun(1)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusFinished, stored.InitializedTestCases[0].ChildTestRun.Status)
}

func TestRunner_SummarizeScenario(t *testing.T) {
	// Run 42 with two cases of three steps: the first passes completely,
	// the second fails its last step.
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})
	runner := usecase.NewRunnerService(storage, mock.NewFileStore("/tmp/att"), &mock.Notifier{})
	run := newDownloadedRun(t, storage, 42, 2, 3)

	first := &run.InitializedTestCases[0]
	for i := range first.TestStepsWithResults {
		runner.PassStep(&first.TestStepsWithResults[i])
	}
	require.True(t, runner.IsAllTestStepDone(first, 3000))
	assert.Equal(t, domain.ResultPassed, first.ChildTestRun.Result)

	second := &run.InitializedTestCases[1]
	runner.PassStep(&second.TestStepsWithResults[0])
	runner.PassStep(&second.TestStepsWithResults[1])
	runner.FailStep(&second.TestStepsWithResults[2])
	require.True(t, runner.IsAllTestStepDone(second, 4000))
	assert.Equal(t, domain.ResultFailed, second.ChildTestRun.Result)

	summary := runner.Summarize(run)
	assert.True(t, summary.Finished)
	assert.True(t, summary.Failed)
	assert.Equal(t, 2, summary.CompletedTestRuns)
	assert.Equal(t, int64(7000), summary.TotalRunTimeMillis)

	runner.ActualizeTestRunFields(run)
	assert.Equal(t, "Completed", run.InitializedTestRun.TestRunStatus)
	assert.Equal(t, domain.ResultFailed, run.InitializedTestRun.TestRun.Result)
	assert.Equal(t, domain.StatusFinished, run.InitializedTestRun.TestRun.Status)
}

func TestRunner_ActualizeTestRunFields_InProgress(t *testing.T) {
	sess := newTestSession()
	storage := usecase.NewStorageService(sess, mock.NewKeyValueStore(), &mock.Notifier{})
	runner := usecase.NewRunnerService(storage, mock.NewFileStore("/tmp/att"), &mock.Notifier{})
	run := newDownloadedRun(t, storage, 5, 2, 1)

	itc := &run.InitializedTestCases[0]
	runner.PassStep(&itc.TestStepsWithResults[0])
	require.True(t, runner.IsAllTestStepDone(itc, 1000))

	summary := runner.ActualizeTestRunFields(run)

	assert.False(t, summary.Finished)
	assert.Equal(t, 1, summary.CompletedTestRuns)
	assert.Equal(t, "In Progress", run.InitializedTestRun.TestRunStatus)
}

func TestRunner_ConversationID(t *testing.T) {
	itc := &domain.InitializedTestCase{
		ChildTestRun: domain.TestRun{URI: "/item/201"},
	}
	assert.Equal(t, "201_0", usecase.ConversationID(itc, 0))
	assert.Equal(t, "201_3", usecase.ConversationID(itc, 3))
}

func TestRunner_AddAttachmentToStep_Image(t *testing.T) {
	files := mock.NewFileStore("/att")
	runner := usecase.NewRunnerService(nil, files, &mock.Notifier{})
	itc := &domain.InitializedTestCase{
		ChildTestRun: domain.TestRun{URI: "/item/201"},
		TestStepsWithResults: []domain.TestStepWithResult{
			{TestStep: domain.TestStep{ActualResultMarkup: "broken button"}},
		},
	}
	step := &itc.TestStepsWithResults[0]

	upload, err := runner.AddAttachmentToStep(itc, 0, step, "shot.png", []byte("imagedata"))

	require.NoError(t, err)
	assert.Equal(t, "201_0", upload.ConversationID)
	assert.Equal(t, "shot.png", upload.VisibleFileName)
	assert.NotEqual(t, "shot.png", upload.FileName)
	assert.Contains(t, step.ActualResultMarkup, upload.Thumbnail)
	assert.True(t, files.CheckFile("/att", upload.FileName))
}

func TestRunner_RemoveAttachmentFromStep(t *testing.T) {
	files := mock.NewFileStore("/att")
	runner := usecase.NewRunnerService(nil, files, &mock.Notifier{})
	itc := &domain.InitializedTestCase{
		ChildTestRun: domain.TestRun{URI: "/item/201"},
		TestStepsWithResults: []domain.TestStepWithResult{
			{TestStep: domain.TestStep{ActualResultMarkup: "see screenshot"}},
		},
	}
	step := &itc.TestStepsWithResults[0]
	upload, err := runner.AddAttachmentToStep(itc, 0, step, "shot.png", []byte("imagedata"))
	require.NoError(t, err)

	runner.RemoveAttachmentFromStep(step, *upload)

	assert.Empty(t, step.Uploads)
	assert.Equal(t, "see screenshot", step.ActualResultMarkup)
	assert.False(t, files.CheckFile("/att", upload.FileName))
}

func TestRunner_ReportBug_UsesSchemaDefaults(t *testing.T) {
	runner := usecase.NewRunnerService(nil, mock.NewFileStore("/att"), &mock.Notifier{})
	itc := &domain.InitializedTestCase{
		ChildTestRun: domain.TestRun{URI: "/item/201", Versions: "2.1"},
	}
	schema := &domain.NewItemSchema{
		Item: domain.TrackerItem{Description: "template text"},
	}

	bug := runner.ReportBug(itc, schema, "Crash on save", "steps to reproduce")

	require.Len(t, itc.Bugs, 1)
	assert.Equal(t, "Crash on save", bug.Name)
	assert.Equal(t, "steps to reproduce", bug.Description)
	assert.Equal(t, []string{"2.1"}, bug.DetectedIn)
}

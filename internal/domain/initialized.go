package domain

import (
	"encoding/json"
	"time"
)

// TestStepWithResult is a test step plus the local execution state that is
// recorded while the tester walks through the case.
type TestStepWithResult struct {
	TestStep

	Passed  bool `json:"passed"`
	Visited bool `json:"visited"`

	// Files the tester attached to this step while recording the actual
	// result. Uploaded later by the sync engine.
	Uploads []UploadFile `json:"uploads,omitempty"`
}

// InitializedTestCase is the execution-ready unit: the test case tracker
// item, its own child test run record, and the resolved step list.
type InitializedTestCase struct {
	TestCaseTrackerItem  TestCase             `json:"testCaseTrackerItem"`
	ChildTestRun         TestRun              `json:"childTestRun"`
	TestStepsWithResults []TestStepWithResult `json:"testStepsWithResults"`
	Description          string               `json:"description,omitempty"`
	Conclusion           string               `json:"conclusion,omitempty"`
	RunTimeMillis        int64                `json:"runTime"`
	UsedParameters       map[string]string    `json:"usedParameters,omitempty"`

	// Client-only fields.
	Bugs       []TrackerItem `json:"bugs,omitempty"`
	UploadedAt *time.Time    `json:"uploadedAt,omitempty"`
}

// InitializedTestRun is the run-level summary kept alongside the cases in
// a downloaded test run.
type InitializedTestRun struct {
	TestRun               TestRun       `json:"testRun"`
	TestRunStatus         string        `json:"testRunStatus,omitempty"`
	TotalRunTimeMillis    int64         `json:"totalRunTime"`
	CompletedTestRuns     int           `json:"completedTestRuns"`
	LeafChildTrackerItems []TrackerItem `json:"leafChildTrackerItems,omitempty"`
	Conclusion            string        `json:"conclusion,omitempty"`
	ChildTestRunStatus    EndRunStatus  `json:"childTestRunStatus,omitempty"`
}

// DownloadedTestRun is the self-contained offline snapshot of one test
// run, the unit of persistence. Uniquely identified by TestRunID.
type DownloadedTestRun struct {
	TestRunID            int                   `json:"testRunId"`
	TestRunName          string                `json:"testRunName"`
	DownloadedAt         time.Time             `json:"downloadedAt"`
	InitializedTestRun   InitializedTestRun    `json:"initializedTestRun"`
	InitializedTestCases []InitializedTestCase `json:"initializedTestCases"`
	Uploaded             bool                  `json:"uploaded,omitempty"`
}

// InitTestRunnerResponse is the payload of one initTestRunner call. The
// server hydrates one test case per call; run-level fields are only
// meaningful on the first response.
type InitTestRunnerResponse struct {
	TestRun               TestRun           `json:"testRun"`
	TestCaseTrackerItem   TestCase          `json:"testCaseTrackerItem"`
	ChildTestRun          TestRun           `json:"childTestRun"`
	TestStepList          []TestStep        `json:"testStepList"`
	Description           string            `json:"description"`
	Conclusion            string            `json:"conclusion"`
	RunTimeMillis         int64             `json:"runTime"`
	UsedParameters        map[string]string `json:"usedParameters"`
	LeafChildTrackerItems []TrackerItem     `json:"leafChildTrackerItems"`
}

// DecodeInitTestRunnerResponse decodes the raw initTestRunner body into a
// typed response. The server omits fields freely, so everything not
// present simply stays at its zero value.
func DecodeInitTestRunnerResponse(raw json.RawMessage) (*InitTestRunnerResponse, error) {
	var resp InitTestRunnerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NewInitializedTestCase builds the execution-ready unit from one
// initTestRunner response. Step results start unvisited.
func NewInitializedTestCase(resp *InitTestRunnerResponse) InitializedTestCase {
	steps := make([]TestStepWithResult, len(resp.TestStepList))
	for i, s := range resp.TestStepList {
		steps[i] = TestStepWithResult{TestStep: s}
	}
	return InitializedTestCase{
		TestCaseTrackerItem:  resp.TestCaseTrackerItem,
		ChildTestRun:         resp.ChildTestRun,
		TestStepsWithResults: steps,
		Description:          resp.Description,
		Conclusion:           resp.Conclusion,
		RunTimeMillis:        resp.RunTimeMillis,
		UsedParameters:       resp.UsedParameters,
	}
}

// NewInitializedTestRun builds the run-level summary from the first
// initTestRunner response of a run.
func NewInitializedTestRun(resp *InitTestRunnerResponse) InitializedTestRun {
	return InitializedTestRun{
		TestRun:               resp.TestRun,
		Conclusion:            resp.Conclusion,
		LeafChildTrackerItems: resp.LeafChildTrackerItems,
	}
}

package domain

import "time"

// Attachment is a file attached to a tracker item comment. Path and
// Directory are filled after the file has been downloaded to the device.
type Attachment struct {
	ID   int    `json:"id,omitempty"`
	Name string `json:"name"`
	URI  string `json:"uri"`

	// Local copy, set by the materialization pass. Empty when the
	// download failed or never ran.
	Path      string `json:"path,omitempty"`
	Directory string `json:"directory,omitempty"`
}

// Comment is a tracker item comment, possibly carrying attachments.
type Comment struct {
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// TestRun is a schedulable unit of manual testing work. The same shape is
// used for the root run and for the per-case child runs.
type TestRun struct {
	ID          int        `json:"id"`
	URI         string     `json:"uri"`
	Name        string     `json:"name"`
	Status      Ref        `json:"status,omitempty"`
	Result      Ref        `json:"result,omitempty"`
	Versions    string     `json:"versions,omitempty"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	ModifiedAt  *time.Time `json:"modifiedAt,omitempty"`
	SpentMillis int64      `json:"spentMillis,omitempty"`
	Description string     `json:"description,omitempty"`
	DescFormat  string     `json:"descFormat,omitempty"`
	Comments    []Comment  `json:"comments,omitempty"`
	TestCases   []TestCase `json:"testCases,omitempty"`
}

// TestCase is one item within a test run, containing ordered test steps.
type TestCase struct {
	ID          int        `json:"id"`
	URI         string     `json:"uri"`
	Name        string     `json:"name"`
	Status      Ref        `json:"status,omitempty"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	ModifiedAt  *time.Time `json:"modifiedAt,omitempty"`
	PreAction   string     `json:"preAction,omitempty"`
	PostAction  string     `json:"postAction,omitempty"`
	Reusable    bool       `json:"reusable,omitempty"`
	Description string     `json:"description,omitempty"`
	DescFormat  string     `json:"descFormat,omitempty"`
	Comments    []Comment  `json:"comments,omitempty"`
	TestSteps   []TestStep `json:"testSteps,omitempty"`
}

// TestStep is one action/expected-result pair within a test case.
type TestStep struct {
	ActionPreview           string     `json:"actionPreview,omitempty"`
	ActionMarkup            string     `json:"actionMarkup,omitempty"`
	ExpectedResultPreview   string     `json:"expectedResultPreview,omitempty"`
	ExpectedResultMarkup    string     `json:"expectedResultMarkup,omitempty"`
	ActualResultPreview     string     `json:"actualResultPreview,omitempty"`
	ActualResultMarkup      string     `json:"actualResultMarkup,omitempty"`
	Critical                bool       `json:"critical,omitempty"`
	Result                  StepResult `json:"result,omitempty"`
	AutoCopyExpectedResults bool       `json:"autoCopyExpectedResults,omitempty"`
}

// CollectAttachments flattens the attachments of all comments, keeping
// comment order.
func CollectAttachments(comments []Comment) []Attachment {
	var out []Attachment
	for _, c := range comments {
		out = append(out, c.Attachments...)
	}
	return out
}

package domain

import "encoding/json"

// Project is a server-side container test runs belong to.
type Project struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Tracker is a work-item classification within a project.
type Tracker struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// TrackerItem is a generic tracker item, used for reported bugs and for
// the leaf children of a test run. Extra schema-provided fields are kept
// as-is so required defaults survive the round trip to the server.
type TrackerItem struct {
	URI         string   `json:"uri,omitempty"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	DescFormat  string   `json:"descFormat,omitempty"`
	DetectedIn  []string `json:"detectedIn,omitempty"`

	// Client-only upload progress, stripped before the item is posted.
	UploadProgress int `json:"uploadProgress,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var trackerItemKnownKeys = []string{
	"uri", "name", "description", "descFormat", "detectedIn", "uploadProgress",
}

// UnmarshalJSON decodes the known fields and collects everything else
// into Extra.
func (t *TrackerItem) UnmarshalJSON(data []byte) error {
	type plain TrackerItem
	var known plain
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range trackerItemKnownKeys {
		delete(raw, key)
	}
	if len(raw) == 0 {
		raw = nil
	}
	*t = TrackerItem(known)
	t.Extra = raw
	return nil
}

// MarshalJSON emits the known fields merged with the Extra fields. Known
// fields win on key collisions.
func (t TrackerItem) MarshalJSON() ([]byte, error) {
	type plain TrackerItem
	encoded, err := json.Marshal(plain(t))
	if err != nil {
		return nil, err
	}
	if len(t.Extra) == 0 {
		return encoded, nil
	}
	merged := map[string]json.RawMessage{}
	for key, value := range t.Extra {
		merged[key] = value
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &known); err != nil {
		return nil, err
	}
	for key, value := range known {
		merged[key] = value
	}
	return json.Marshal(merged)
}

// StripClientFields returns a copy suitable for posting to the server.
func (t TrackerItem) StripClientFields() TrackerItem {
	out := t
	out.UploadProgress = 0
	return out
}

// TrackerItemPage is one page of a tracker item query.
type TrackerItemPage struct {
	TrackerItems struct {
		Items []TestRun `json:"items"`
	} `json:"trackerItems"`
}

// NewItemSchema describes how a new item of a tracker has to be created:
// a pre-filled item plus the type metadata naming required fields.
type NewItemSchema struct {
	Item TrackerItem `json:"item"`
	Type struct {
		Required []string `json:"required"`
	} `json:"type"`
}

// TrackerWithNewItemSchema pairs a bug tracker with its item creation
// schema. The schema may be nil when its fetch failed.
type TrackerWithNewItemSchema struct {
	Tracker       Tracker        `json:"tracker"`
	NewItemSchema *NewItemSchema `json:"newItemSchema,omitempty"`
}

// ProjectWithBugTrackers pairs a project with all its bug trackers and
// their creation schemas. Cached locally so bugs can be reported offline.
type ProjectWithBugTrackers struct {
	Project     Project                    `json:"project"`
	BugTrackers []TrackerWithNewItemSchema `json:"bugTrackers"`
}

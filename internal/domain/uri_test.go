package domain

import (
	"strings"
	"testing"
)

func TestURI2ID(t *testing.T) {
	tests := []struct {
		uri     string
		want    int
		wantErr bool
	}{
		{"/item/1234", 1234, false},
		{"/tracker/987/", 987, false},
		{"42", 42, false},
		{"/project/abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := URI2ID(tt.uri)
		if tt.wantErr {
			if err == nil {
				t.Errorf("URI2ID(%q): expected error, got %d", tt.uri, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("URI2ID(%q): unexpected error %v", tt.uri, err)
			continue
		}
		if got != tt.want {
			t.Errorf("URI2ID(%q) = %d, want %d", tt.uri, got, tt.want)
		}
	}
}

func TestIsImageExtension(t *testing.T) {
	if !IsImageExtension("screenshot.PNG") {
		t.Error("expected .PNG to be recognized as image")
	}
	if !IsImageExtension("photo.jpeg") {
		t.Error("expected .jpeg to be recognized as image")
	}
	if IsImageExtension("report.pdf") {
		t.Error("expected .pdf to not be an image")
	}
	if IsImageExtension("noextension") {
		t.Error("expected name without extension to not be an image")
	}
}

func TestUniqueFileName(t *testing.T) {
	first := UniqueFileName("result.png")
	second := UniqueFileName("result.png")

	if !strings.HasSuffix(first, "_result.png") {
		t.Errorf("expected original name preserved as suffix, got %q", first)
	}
	if first == second {
		t.Errorf("expected unique names, got %q twice", first)
	}
}

func TestFileSizeString(t *testing.T) {
	if got := FileSizeString(512); got != "512 B" {
		t.Errorf("expected 512 B, got %q", got)
	}
	if got := FileSizeString(2048); got != "2.0 KB" {
		t.Errorf("expected 2.0 KB, got %q", got)
	}
	if got := FileSizeString(3 << 20); got != "3.0 MB" {
		t.Errorf("expected 3.0 MB, got %q", got)
	}
}

func TestThumbnailToken(t *testing.T) {
	if got := ThumbnailToken("abc_result.png"); got != "[!abc_result.png!]" {
		t.Errorf("unexpected thumbnail token %q", got)
	}
}

func TestCollectAttachments(t *testing.T) {
	comments := []Comment{
		{Attachments: []Attachment{{Name: "a.png"}, {Name: "b.png"}}},
		{},
		{Attachments: []Attachment{{Name: "c.png"}}},
	}

	attachments := CollectAttachments(comments)

	if len(attachments) != 3 {
		t.Fatalf("expected 3 attachments, got %d", len(attachments))
	}
	if attachments[2].Name != "c.png" {
		t.Errorf("expected comment order preserved, got %q last", attachments[2].Name)
	}
}

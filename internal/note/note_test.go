package note

import (
	"testing"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name           string
		current        Status
		hasContent     bool
		hasAttachments bool
		want           Status
	}{
		{
			name:    "both empty stays empty",
			current: StatusEmpty,
			want:    StatusEmpty,
		},
		{
			name:       "content makes draft",
			current:    StatusEmpty,
			hasContent: true,
			want:       StatusDraft,
		},
		{
			name:           "attachments alone make draft",
			current:        StatusEmpty,
			hasAttachments: true,
			want:           StatusDraft,
		},
		{
			name:    "draft with everything removed returns to empty",
			current: StatusDraft,
			want:    StatusEmpty,
		},
		{
			name:    "published absorbs content removal",
			current: StatusPublished,
			want:    StatusPublished,
		},
		{
			name:       "published absorbs content edits",
			current:    StatusPublished,
			hasContent: true,
			want:       StatusPublished,
		},
		{
			name:           "published absorbs attachment-only edits",
			current:        StatusPublished,
			hasAttachments: true,
			want:           StatusPublished,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextStatus(tt.current, tt.hasContent, tt.hasAttachments)
			if got != tt.want {
				t.Errorf("NextStatus(%v, %v, %v) = %v, want %v",
					tt.current, tt.hasContent, tt.hasAttachments, got, tt.want)
			}
		})
	}
}

func TestHasContentTrimsWhitespace(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"", false},
		{"   ", false},
		{"\n\t ", false},
		{"fix lighting", true},
		{"  x  ", true},
	}

	for _, tt := range tests {
		d := &Draft{Content: tt.content}
		if got := d.HasContent(); got != tt.want {
			t.Errorf("HasContent(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestParseStatusRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusEmpty, StatusDraft, StatusPublished} {
		got, err := ParseStatus(s.String())
		if err != nil {
			t.Fatalf("ParseStatus(%q) failed: %v", s.String(), err)
		}
		if got != s {
			t.Errorf("ParseStatus(%q) = %v, want %v", s.String(), got, s)
		}
	}

	if _, err := ParseStatus("reviewed"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestNewAttachmentInfersMimeType(t *testing.T) {
	att := NewAttachment("frame.png", "", []byte{1, 2, 3})
	if att.ID == "" {
		t.Error("expected generated id")
	}
	if att.MimeType != "image/png" {
		t.Errorf("MimeType = %q, want image/png", att.MimeType)
	}

	att = NewAttachment("blob", "", nil)
	if att.MimeType != "application/octet-stream" {
		t.Errorf("MimeType = %q, want application/octet-stream", att.MimeType)
	}
}

func TestDraftClone(t *testing.T) {
	d := &Draft{
		PlaylistID:  "pl-1",
		EntityID:    "v1",
		Content:     "looks good",
		Attachments: []Attachment{NewAttachment("a.png", "image/png", nil)},
	}

	c := d.Clone()
	c.Attachments[0].Name = "b.png"
	c.Content = "changed"

	if d.Attachments[0].Name != "a.png" {
		t.Error("clone shares attachment backing array")
	}
	if d.Content != "looks good" {
		t.Error("clone shares content")
	}
}

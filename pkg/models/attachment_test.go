package models

import "testing"

func TestAttachment_Inlinable(t *testing.T) {
	tests := []struct {
		attachmentType AttachmentType
		want           bool
	}{
		{AttachmentCode, true},
		{AttachmentText, true},
		{AttachmentImage, false},
		{AttachmentDocument, false},
		{AttachmentFile, false},
	}

	for _, tt := range tests {
		a := Attachment{Type: tt.attachmentType}
		if got := a.Inlinable(); got != tt.want {
			t.Errorf("Inlinable() for %s = %v, want %v", tt.attachmentType, got, tt.want)
		}
	}
}

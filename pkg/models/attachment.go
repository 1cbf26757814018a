package models

import "github.com/google/uuid"

// AttachmentType classifies a pending attachment.
type AttachmentType string

const (
	AttachmentCode     AttachmentType = "code"
	AttachmentImage    AttachmentType = "image"
	AttachmentDocument AttachmentType = "document"
	AttachmentText     AttachmentType = "text"
	AttachmentFile     AttachmentType = "file"
)

// Attachment exists only in the pending-input stage. Once a message is sent,
// code and text attachments are inlined into the message content; image and
// document attachments survive only as a display-only record.
type Attachment struct {
	ID      uuid.UUID      `json:"id"`
	Type    AttachmentType `json:"type"`
	Name    string         `json:"name"`
	Content string         `json:"content,omitempty"`
	Preview string         `json:"preview,omitempty"`
}

// Inlinable reports whether the attachment content gets folded into the
// message text at send time.
func (a Attachment) Inlinable() bool {
	return a.Type == AttachmentCode || a.Type == AttachmentText
}

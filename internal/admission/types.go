// Package admission decides whether an inbound text event from the Service
// becomes an AdmittedMessage: filtering, sanitization, chunking and
// deduplication, in that order.
package admission

import "time"

// MessageKind tags the Service's message classification. Only Default
// messages are ever admitted.
type MessageKind string

const (
	MessageKindDefault MessageKind = "default"
	MessageKindSystem  MessageKind = "system"
)

// TextEvent is the transient inbound record the admitter consumes. It is
// never retained beyond one Admit call.
type TextEvent struct {
	AuthorID          string
	AuthorDisplayName string
	AuthorIsAutomated bool
	ChannelID         string
	Content           string
	CreatedAt         time.Time
	Kind              MessageKind
}

// AdmittedMessage is produced by a successful Admit call. It is destroyed
// (by the caller) once every chunk has been played or skipped.
type AdmittedMessage struct {
	GroupID           string
	AuthorID          string
	AuthorDisplayName string
	SanitizedText     string
	Chunks            []string
	ContentHash       string
}

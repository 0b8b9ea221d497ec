package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Subjects for workflow and audit events.
const (
	EventTypeReductionAttempt   = "reduction.attempt"
	EventTypeReductionApplied   = "reduction.applied"
	EventTypeReductionRejected  = "reduction.rejected"
	EventTypeReductionFailed    = "reduction.failed"
	EventTypeRevivalApplied     = "revival.applied"
	EventTypeRevivalFailed      = "revival.failed"
	EventTypeSuspensionApplied  = "suspension.applied"
	EventTypeRevivalBatchResult = "revival.batch_result"
)

// Event is the envelope published for every workflow event.
type Event struct {
	ID        uuid.UUID   `json:"id"`
	Type      string      `json:"type"`
	NoticeNo  string      `json:"notice_no,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"`
	Data      interface{} `json:"data,omitempty"`
}

// NewEvent builds an event envelope for a notice.
func NewEvent(eventType, noticeNo, source string, data interface{}) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		NoticeNo:  noticeNo,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	}
}

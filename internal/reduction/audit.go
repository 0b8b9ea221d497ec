package reduction

import (
	"context"
	"log"

	"github.com/terminal-bench/noticeflow/pkg/messaging"
)

// EventPublisher publishes structured audit events. *messaging.Client
// satisfies it; a nil publisher degrades to log-only auditing.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// AuditService records every reduction attempt and its outcome. It is
// append-only and not user-facing; it exists for traceability. Each record
// is logged and, when a publisher is configured, emitted as a JSON event.
type AuditService struct {
	events EventPublisher
}

// NewAuditService creates the audit service. events may be nil.
func NewAuditService(events EventPublisher) *AuditService {
	return &AuditService{events: events}
}

func (a *AuditService) publish(ctx context.Context, eventType, noticeNo string, data interface{}) {
	if a.events == nil {
		return
	}
	evt := messaging.NewEvent(eventType, noticeNo, "reduction-service", data)
	if err := a.events.Publish(ctx, eventType, evt); err != nil {
		// Audit publishing is best-effort; the workflow outcome stands.
		log.Printf("audit: failed to publish %s for notice %s: %v", eventType, noticeNo, err)
	}
}

// RecordAttemptStart marks the beginning of a reduction attempt.
func (a *AuditService) RecordAttemptStart(ctx context.Context, req *Request) {
	log.Printf("audit: reduction attempt started for notice %s (reduced %s, payable %s, source %s)",
		req.NoticeNo, req.AmountReduced, req.AmountPayable, req.SuspensionSource)
	a.publish(ctx, messaging.EventTypeReductionAttempt, req.NoticeNo, map[string]string{
		"amount_reduced":     req.AmountReduced.String(),
		"amount_payable":     req.AmountPayable.String(),
		"authorised_officer": req.AuthorisedOfficer,
		"suspension_source":  string(req.SuspensionSource),
	})
}

// RecordAttemptComplete records the final outcome of an attempt.
func (a *AuditService) RecordAttemptComplete(ctx context.Context, req *Request, result Result) {
	log.Printf("audit: reduction attempt completed for notice %s: %s code=%s idempotent=%v",
		req.NoticeNo, result.Outcome, result.Code, result.Idempotent)

	eventType := messaging.EventTypeReductionRejected
	switch result.Outcome {
	case OutcomeSuccess:
		eventType = messaging.EventTypeReductionApplied
	case OutcomeTechnicalError:
		eventType = messaging.EventTypeReductionFailed
	}
	a.publish(ctx, eventType, req.NoticeNo, map[string]interface{}{
		"outcome":    result.Outcome.String(),
		"code":       result.Code,
		"idempotent": result.Idempotent,
	})
}

// RecordNoticeNotFound records a lookup miss.
func (a *AuditService) RecordNoticeNotFound(noticeNo string) {
	log.Printf("audit: notice %s not found", noticeNo)
}

// RecordIdempotentRequest records a request whose effect was already applied.
func (a *AuditService) RecordIdempotentRequest(noticeNo string) {
	log.Printf("audit: reduction already applied to notice %s - idempotent request", noticeNo)
}

// RecordValidationFailure records a failed validation check.
func (a *AuditService) RecordValidationFailure(noticeNo, code, reason string) {
	log.Printf("audit: validation failed for notice %s: %s (%s)", noticeNo, code, reason)
}

// RecordEligibilityFailure records the specific eligibility rule that failed.
func (a *AuditService) RecordEligibilityFailure(noticeNo string, ruleCode int, stage, reason string) {
	log.Printf("audit: notice %s not eligible (rule code %d, stage %s): %s",
		noticeNo, ruleCode, stage, reason)
}

// RecordPersistenceStart marks the beginning of the transactional update.
func (a *AuditService) RecordPersistenceStart(noticeNo string) {
	log.Printf("audit: persisting reduction for notice %s", noticeNo)
}

// RecordPersistenceSuccess marks a committed reduction.
func (a *AuditService) RecordPersistenceSuccess(noticeNo string) {
	log.Printf("audit: reduction persisted for notice %s", noticeNo)
}

// RecordPersistenceFailure records the internal error server-side. The
// error text stays out of the caller-facing result.
func (a *AuditService) RecordPersistenceFailure(noticeNo string, err error) {
	log.Printf("audit: persistence failed for notice %s: %v", noticeNo, err)
}

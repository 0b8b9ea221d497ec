package reduction

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/terminal-bench/noticeflow/internal/notices"
)

// NoticeLoader loads notices by number.
type NoticeLoader interface {
	GetByNoticeNo(ctx context.Context, noticeNo string) (*notices.Notice, error)
}

// Persister is the transactional side of the workflow.
type Persister interface {
	NextSerial(ctx context.Context, noticeNo string) (int, error)
	IsAlreadyApplied(ctx context.Context, req *Request, n *notices.Notice) (bool, error)
	Apply(ctx context.Context, rctx *Context) error
}

// Service orchestrates the reduction workflow. Each step is audited and the
// first failure short-circuits. Validation and business failures are
// expected and handled entirely here; raw persistence errors never cross
// this boundary.
type Service struct {
	notices     NoticeLoader
	validator   *Validator
	persistence Persister
	audit       *AuditService
	attempts    int
	now         func() time.Time
}

// NewService creates the orchestrator. attempts bounds how many times the
// whole load-validate-persist sequence is retried when the notice row's
// version moves underneath us; values below 1 are treated as 1.
func NewService(loader NoticeLoader, validator *Validator, persistence Persister, audit *AuditService, attempts int) *Service {
	if attempts < 1 {
		attempts = 1
	}
	return &Service{
		notices:     loader,
		validator:   validator,
		persistence: persistence,
		audit:       audit,
		attempts:    attempts,
		now:         time.Now,
	}
}

// HandleReduction runs the full workflow for one inbound request and
// returns exactly one of the four outcomes.
func (s *Service) HandleReduction(ctx context.Context, req *Request) Result {
	log.Printf("reduction: processing request for notice %s", req.NoticeNo)
	if req.DateOfReduction.IsZero() {
		req.DateOfReduction = startOfDay(s.now())
	}
	s.audit.RecordAttemptStart(ctx, req)

	var result Result
	for attempt := 1; ; attempt++ {
		var retry bool
		result, retry = s.processOnce(ctx, req)
		if !retry {
			break
		}
		if attempt >= s.attempts {
			// Eligibility or paid state may have changed between attempts,
			// so the caller must resubmit rather than us blindly rewriting.
			msg := fmt.Sprintf("concurrent modification detected for notice %s, please retry", req.NoticeNo)
			log.Printf("reduction: optimistic lock retries exhausted for notice %s after %d attempts",
				req.NoticeNo, attempt)
			result = TechnicalError(CodeOptimisticLockFailure, msg)
			break
		}
		log.Printf("reduction: version conflict on notice %s, retrying (attempt %d of %d)",
			req.NoticeNo, attempt+1, s.attempts)
	}

	s.audit.RecordAttemptComplete(ctx, req, result)
	return result
}

// processOnce runs one pass of the sequence. The second return value asks
// the caller to rerun the whole pass after an optimistic-lock conflict.
func (s *Service) processOnce(ctx context.Context, req *Request) (Result, bool) {
	notice, err := s.notices.GetByNoticeNo(ctx, req.NoticeNo)
	if errors.Is(err, notices.ErrNotFound) {
		s.audit.RecordNoticeNotFound(req.NoticeNo)
		return BusinessError(CodeNoticeNotFound,
			fmt.Sprintf("notice %s not found in the system", req.NoticeNo)), false
	}
	if err != nil {
		return s.classifyTechnical(req.NoticeNo, err), false
	}

	applied, err := s.persistence.IsAlreadyApplied(ctx, req, notice)
	if err != nil {
		return s.classifyTechnical(req.NoticeNo, err), false
	}
	if applied {
		s.audit.RecordIdempotentRequest(notice.NoticeNo)
		return IdempotentSuccess(notice.NoticeNo, "reduction already applied"), false
	}

	if r := s.validator.ValidateNotPaid(notice); r != nil {
		s.audit.RecordValidationFailure(notice.NoticeNo, r.Code, r.Message)
		return *r, false
	}

	srNo, err := s.persistence.NextSerial(ctx, notice.NoticeNo)
	if err != nil {
		return s.classifyTechnical(req.NoticeNo, err), false
	}
	rctx := NewContext(req, notice, srNo, s.now())

	if r := s.validator.ValidateAmounts(req, notice); r != nil {
		s.audit.RecordValidationFailure(notice.NoticeNo, r.Code, r.Message)
		return *r, false
	}
	if r := s.validator.ValidateDates(req); r != nil {
		s.audit.RecordValidationFailure(notice.NoticeNo, r.Code, r.Message)
		return *r, false
	}

	r, err := s.validator.ValidateEligibility(ctx, rctx)
	if err != nil {
		return s.classifyTechnical(req.NoticeNo, err), false
	}
	if r != nil {
		s.audit.RecordEligibilityFailure(notice.NoticeNo, rctx.ComputerRuleCode, string(rctx.Stage), r.Reason)
		return *r, false
	}

	s.audit.RecordPersistenceStart(notice.NoticeNo)
	if err := s.persistence.Apply(ctx, rctx); err != nil {
		if errors.Is(err, notices.ErrVersionConflict) {
			return Result{}, true
		}
		s.audit.RecordPersistenceFailure(notice.NoticeNo, err)
		return s.classifyTechnical(req.NoticeNo, err), false
	}
	s.audit.RecordPersistenceSuccess(notice.NoticeNo)

	return Success(notice.NoticeNo, "reduction applied successfully"), false
}

// classifyTechnical maps an infrastructure error to a caller-safe result.
// Internal detail is logged here and never leaks into the response.
func (s *Service) classifyTechnical(noticeNo string, err error) Result {
	log.Printf("reduction: technical failure for notice %s: %v", noticeNo, err)
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return TechnicalError(CodeSystemUnavailable, "downstream system unavailable")
	}
	return TechnicalError(CodeReductionFail, "database operation failed during reduction processing")
}

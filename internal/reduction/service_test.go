package reduction

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/noticeflow/internal/notices"
	"github.com/terminal-bench/noticeflow/internal/rules"
)

type fakeLoader struct {
	notice *notices.Notice
	err    error
	calls  int
}

func (f *fakeLoader) GetByNoticeNo(ctx context.Context, noticeNo string) (*notices.Notice, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	// Copy so a retry observes fresh state, the way a reload would.
	n := *f.notice
	return &n, nil
}

type fakePersister struct {
	alreadyApplied bool
	appliedErr     error
	applyErrs      []error
	applyCalls     int
	lastCtx        *Context
}

func (f *fakePersister) NextSerial(ctx context.Context, noticeNo string) (int, error) {
	return 3, nil
}

func (f *fakePersister) IsAlreadyApplied(ctx context.Context, req *Request, n *notices.Notice) (bool, error) {
	return f.alreadyApplied, f.appliedErr
}

func (f *fakePersister) Apply(ctx context.Context, rctx *Context) error {
	f.lastCtx = rctx
	var err error
	if f.applyCalls < len(f.applyErrs) {
		err = f.applyErrs[f.applyCalls]
	}
	f.applyCalls++
	return err
}

func newTestService(loader *fakeLoader, persister *fakePersister) *Service {
	v := NewValidator(&fakeRuleChecker{eligibility: rules.Eligibility{Eligible: true}}, fixedNow)
	s := NewService(loader, v, persister, NewAuditService(nil), 3)
	s.now = fixedNow
	return s
}

func TestHandleReductionSuccess(t *testing.T) {
	t.Run("should apply a valid reduction", func(t *testing.T) {
		loader := &fakeLoader{notice: testNotice()}
		persister := &fakePersister{}
		s := newTestService(loader, persister)

		result := s.HandleReduction(context.Background(), testRequest())

		assert.Equal(t, OutcomeSuccess, result.Outcome)
		assert.False(t, result.Idempotent)
		assert.Equal(t, 200, result.HTTPStatus())
		assert.Equal(t, "Reduction Success", result.ResponseMessage())
		require.NotNil(t, persister.lastCtx)
		assert.Equal(t, 3, persister.lastCtx.SrNo)
		assert.Equal(t, 30305, persister.lastCtx.ComputerRuleCode)
	})

	t.Run("should default the reduction date from the service clock", func(t *testing.T) {
		loader := &fakeLoader{notice: testNotice()}
		persister := &fakePersister{}
		s := newTestService(loader, persister)

		req := testRequest()
		req.DateOfReduction = time.Time{}
		result := s.HandleReduction(context.Background(), req)

		assert.Equal(t, OutcomeSuccess, result.Outcome)
		require.NotNil(t, persister.lastCtx)
		want := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, want, persister.lastCtx.Request.DateOfReduction)
	})
}

func TestHandleReductionNotFound(t *testing.T) {
	t.Run("should return not found for an unknown notice", func(t *testing.T) {
		loader := &fakeLoader{err: notices.ErrNotFound}
		s := newTestService(loader, &fakePersister{})

		result := s.HandleReduction(context.Background(), testRequest())

		assert.Equal(t, OutcomeBusinessError, result.Outcome)
		assert.Equal(t, CodeNoticeNotFound, result.Code)
		assert.Equal(t, 404, result.HTTPStatus())
		assert.Equal(t, "Notice not found", result.ResponseMessage())
	})
}

func TestHandleReductionIdempotent(t *testing.T) {
	t.Run("should return success without reapplying", func(t *testing.T) {
		loader := &fakeLoader{notice: testNotice()}
		persister := &fakePersister{alreadyApplied: true}
		s := newTestService(loader, persister)

		result := s.HandleReduction(context.Background(), testRequest())

		assert.Equal(t, OutcomeSuccess, result.Outcome)
		assert.True(t, result.Idempotent)
		assert.Equal(t, "Reduction Success", result.ResponseMessage())
		assert.Equal(t, 0, persister.applyCalls)
	})

	t.Run("should short-circuit before the paid check", func(t *testing.T) {
		// A reduction that already went through may be followed by payment;
		// repeating the request must stay a success, not flip to a paid
		// rejection.
		n := testNotice()
		n.PaymentStatus = "FP"
		loader := &fakeLoader{notice: n}
		persister := &fakePersister{alreadyApplied: true}
		s := newTestService(loader, persister)

		result := s.HandleReduction(context.Background(), testRequest())

		assert.Equal(t, OutcomeSuccess, result.Outcome)
		assert.True(t, result.Idempotent)
	})
}

func TestHandleReductionPaid(t *testing.T) {
	t.Run("should reject a paid notice", func(t *testing.T) {
		n := testNotice()
		n.PaymentStatus = "FP"
		loader := &fakeLoader{notice: n}
		persister := &fakePersister{}
		s := newTestService(loader, persister)

		result := s.HandleReduction(context.Background(), testRequest())

		assert.Equal(t, OutcomeBusinessError, result.Outcome)
		assert.Equal(t, CodeNoticePaid, result.Code)
		assert.Equal(t, 409, result.HTTPStatus())
		assert.Equal(t, 0, persister.applyCalls)
	})
}

func TestHandleReductionValidation(t *testing.T) {
	t.Run("should reject inconsistent amounts without persisting", func(t *testing.T) {
		loader := &fakeLoader{notice: testNotice()}
		persister := &fakePersister{}
		s := newTestService(loader, persister)

		req := testRequest()
		req.AmountPayable = req.AmountPayable.Add(req.AmountReduced)
		result := s.HandleReduction(context.Background(), req)

		assert.Equal(t, OutcomeValidationError, result.Outcome)
		assert.Equal(t, CodeInconsistentAmounts, result.Code)
		assert.Equal(t, 400, result.HTTPStatus())
		assert.Equal(t, 0, persister.applyCalls)
	})
}

func TestHandleReductionRetry(t *testing.T) {
	t.Run("should rerun the whole sequence after a version conflict", func(t *testing.T) {
		loader := &fakeLoader{notice: testNotice()}
		persister := &fakePersister{applyErrs: []error{notices.ErrVersionConflict, nil}}
		s := newTestService(loader, persister)

		result := s.HandleReduction(context.Background(), testRequest())

		assert.Equal(t, OutcomeSuccess, result.Outcome)
		assert.Equal(t, 2, persister.applyCalls)
		assert.Equal(t, 2, loader.calls)
	})

	t.Run("should give up after the configured attempts", func(t *testing.T) {
		loader := &fakeLoader{notice: testNotice()}
		persister := &fakePersister{applyErrs: []error{
			notices.ErrVersionConflict, notices.ErrVersionConflict, notices.ErrVersionConflict,
		}}
		s := newTestService(loader, persister)

		result := s.HandleReduction(context.Background(), testRequest())

		assert.Equal(t, OutcomeTechnicalError, result.Outcome)
		assert.Equal(t, CodeOptimisticLockFailure, result.Code)
		assert.Equal(t, 500, result.HTTPStatus())
		assert.Equal(t, 3, persister.applyCalls)
	})
}

func TestHandleReductionTechnical(t *testing.T) {
	t.Run("should map connection loss to system unavailable", func(t *testing.T) {
		loader := &fakeLoader{notice: testNotice()}
		persister := &fakePersister{applyErrs: []error{driver.ErrBadConn}}
		s := newTestService(loader, persister)

		result := s.HandleReduction(context.Background(), testRequest())

		assert.Equal(t, OutcomeTechnicalError, result.Outcome)
		assert.Equal(t, CodeSystemUnavailable, result.Code)
		assert.Equal(t, 503, result.HTTPStatus())
		assert.Equal(t, "System unavailable", result.ResponseMessage())
	})

	t.Run("should not leak internal error detail", func(t *testing.T) {
		loader := &fakeLoader{notice: testNotice()}
		persister := &fakePersister{applyErrs: []error{
			errors.New(`pq: duplicate key value violates unique constraint "reduced_offence_amounts_pkey"`),
		}}
		s := newTestService(loader, persister)

		result := s.HandleReduction(context.Background(), testRequest())

		assert.Equal(t, OutcomeTechnicalError, result.Outcome)
		assert.Equal(t, CodeReductionFail, result.Code)
		assert.Equal(t, "Reduction fail", result.ResponseMessage())
		assert.NotContains(t, result.Message, "pq:")
		assert.NotContains(t, result.Message, "constraint")
	})
}

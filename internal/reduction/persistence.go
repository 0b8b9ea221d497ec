package reduction

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/terminal-bench/noticeflow/internal/codes"
	"github.com/terminal-bench/noticeflow/internal/notices"
	"github.com/terminal-bench/noticeflow/internal/suspension"
)

// PersistenceService applies an approved reduction transactionally: the
// notice row update, the suspension ledger entry and the reduction-amount
// log either all happen or none do.
type PersistenceService struct {
	db     *sql.DB
	ledger *suspension.Ledger
}

// NewPersistenceService creates the persistence service.
func NewPersistenceService(db *sql.DB, ledger *suspension.Ledger) *PersistenceService {
	return &PersistenceService{db: db, ledger: ledger}
}

// NextSerial allocates the sequence number shared by the ledger entry and
// the reduction log for one transaction.
func (p *PersistenceService) NextSerial(ctx context.Context, noticeNo string) (int, error) {
	return p.ledger.NextSerial(ctx, noticeNo)
}

// IsAlreadyApplied reports whether the notice already carries the effect of
// this exact reduction: its amount payable equals the requested amount and
// a paired reduction-log row for that amount exists. Retried requests must
// not receive a different answer than the first attempt.
func (p *PersistenceService) IsAlreadyApplied(ctx context.Context, req *Request, n *notices.Notice) (bool, error) {
	if !n.AmountPayable.Equal(req.AmountPayable) {
		return false, nil
	}

	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM reduced_offence_amounts
		  WHERE notice_no = $1 AND amount_payable = $2)`,
		n.NoticeNo, req.AmountPayable).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check prior reduction for notice %s: %w", n.NoticeNo, err)
	}
	return exists, nil
}

// Apply performs the reduction mutation in a single transaction:
//
//  1. The notice row: amount payable set to the reduced amount, the
//     suspension snapshot cleared (a reduction lifts prior blocking
//     suspensions against payment), version incremented under optimistic
//     locking.
//  2. A ledger entry recording the reduction under the TS/RED taxonomy
//     (audit and reporting; it does not block the notice).
//  3. A reduction-amount log row under the same serial number.
//
// A version mismatch returns notices.ErrVersionConflict; the caller retries
// the whole validate-and-persist sequence, not just the write.
func (p *PersistenceService) Apply(ctx context.Context, rctx *Context) error {
	req := rctx.Request
	noticeNo := rctx.Notice.NoticeNo

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE notices
		 SET amount_payable = $1,
		     suspension_type = NULL,
		     reason_of_suspension = NULL,
		     date_of_suspension = NULL,
		     due_date_of_revival = NULL,
		     version = version + 1
		 WHERE notice_no = $2 AND version = $3`,
		req.AmountPayable, noticeNo, rctx.Notice.Version)
	if err != nil {
		return fmt.Errorf("failed to update notice %s: %w", noticeNo, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return notices.ErrVersionConflict
	}

	entry := &suspension.Entry{
		NoticeNo:           noticeNo,
		DateOfSuspension:   req.DateOfReduction,
		SrNo:               rctx.SrNo,
		SuspensionSource:   req.SuspensionSource,
		SuspensionType:     codes.SuspensionTemporary,
		ReasonOfSuspension: codes.ReasonReduction,
		AuthorisingOfficer: req.AuthorisedOfficer,
		DueDateOfRevival:   req.ExpiryDate,
		Remarks:            fmt.Sprintf("Reduction applied - amount reduced: %s", req.AmountReduced),
	}
	if err := p.ledger.AppendTx(ctx, tx, entry); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO reduced_offence_amounts
		 (notice_no, sr_no, date_of_reduction, amount_reduced, amount_payable,
		  reason_of_reduction, expiry_date, authorised_officer, remarks)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		noticeNo, rctx.SrNo, req.DateOfReduction, req.AmountReduced, req.AmountPayable,
		req.ReasonOfReduction, req.ExpiryDate, req.AuthorisedOfficer, req.Remarks)
	if err != nil {
		return fmt.Errorf("failed to append reduction log for notice %s: %w", noticeNo, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reduction for notice %s: %w", noticeNo, err)
	}
	return nil
}

// Package suspension holds the append-mostly ledger of suspension and
// revival events recorded against notices.
package suspension

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/terminal-bench/noticeflow/internal/codes"
)

// ErrEntryNotFound is returned when a ledger key does not resolve.
var ErrEntryNotFound = errors.New("suspension ledger entry not found")

// EntryKey is the composite identity of a ledger entry.
type EntryKey struct {
	NoticeNo         string
	DateOfSuspension time.Time
	SrNo             int
}

// Entry is one suspension event, and - once revived - its revival fields.
// Entries are never deleted; revival only adds the revival columns.
type Entry struct {
	NoticeNo           string                 `json:"notice_no"`
	DateOfSuspension   time.Time              `json:"date_of_suspension"`
	SrNo               int                    `json:"sr_no"`
	SuspensionSource   codes.Subsystem        `json:"suspension_source"`
	CaseRef            string                 `json:"case_ref,omitempty"`
	SuspensionType     codes.SuspensionType   `json:"suspension_type"`
	ReasonOfSuspension codes.SuspensionReason `json:"reason_of_suspension"`
	AuthorisingOfficer string                 `json:"authorising_officer"`
	DueDateOfRevival   *time.Time             `json:"due_date_of_revival,omitempty"`
	Remarks            string                 `json:"remarks,omitempty"`

	DateOfRevival   *time.Time `json:"date_of_revival,omitempty"`
	RevivalReason   string     `json:"revival_reason,omitempty"`
	RevivalOfficer  string     `json:"revival_officer,omitempty"`
	RevivalRemarks  string     `json:"revival_remarks,omitempty"`
}

// Key returns the entry's composite identity.
func (e *Entry) Key() EntryKey {
	return EntryKey{NoticeNo: e.NoticeNo, DateOfSuspension: e.DateOfSuspension, SrNo: e.SrNo}
}

// Active reports whether the suspension has not yet been revived.
func (e *Entry) Active() bool {
	return e.DateOfRevival == nil
}

const entryColumns = `notice_no, date_of_suspension, sr_no, suspension_source, case_ref,
	suspension_type, reason_of_suspension, authorising_officer, due_date_of_revival, remarks,
	date_of_revival, revival_reason, revival_officer, revival_remarks`

// Ledger reads and writes the suspended_notices table.
type Ledger struct {
	db *sql.DB
}

// NewLedger creates a ledger over an open database handle.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// NextSerial allocates the next sequence number for a notice. The same
// serial is shared by the ledger entry and the reduction log entry of one
// transaction so the two records stay paired.
func (l *Ledger) NextSerial(ctx context.Context, noticeNo string) (int, error) {
	return nextSerial(ctx, l.db, noticeNo)
}

// NextSerialTx is NextSerial inside an open transaction.
func (l *Ledger) NextSerialTx(ctx context.Context, tx *sql.Tx, noticeNo string) (int, error) {
	return nextSerial(ctx, tx, noticeNo)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func nextSerial(ctx context.Context, q querier, noticeNo string) (int, error) {
	var maxSr sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT MAX(sr_no) FROM suspended_notices WHERE notice_no = $1`, noticeNo).Scan(&maxSr)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate serial for notice %s: %w", noticeNo, err)
	}
	return int(maxSr.Int64) + 1, nil
}

// Append records a new suspension event.
func (l *Ledger) Append(ctx context.Context, e *Entry) error {
	return appendEntry(ctx, l.db, e)
}

// AppendTx records a new suspension event inside an open transaction.
func (l *Ledger) AppendTx(ctx context.Context, tx *sql.Tx, e *Entry) error {
	return appendEntry(ctx, tx, e)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func appendEntry(ctx context.Context, x execer, e *Entry) error {
	_, err := x.ExecContext(ctx,
		`INSERT INTO suspended_notices (`+entryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.NoticeNo, e.DateOfSuspension, e.SrNo, string(e.SuspensionSource), e.CaseRef,
		string(e.SuspensionType), string(e.ReasonOfSuspension), e.AuthorisingOfficer,
		e.DueDateOfRevival, e.Remarks,
		e.DateOfRevival, e.RevivalReason, e.RevivalOfficer, e.RevivalRemarks)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry for notice %s: %w", e.NoticeNo, err)
	}
	return nil
}

// MarkRevived adds revival fields to an existing entry. Only the revival
// columns are ever mutated.
func (l *Ledger) MarkRevived(ctx context.Context, key EntryKey, revivedAt time.Time, reason, officer, remarks string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE suspended_notices
		 SET date_of_revival = $1, revival_reason = $2, revival_officer = $3, revival_remarks = $4
		 WHERE notice_no = $5 AND date_of_suspension = $6 AND sr_no = $7 AND date_of_revival IS NULL`,
		revivedAt, reason, officer, remarks,
		key.NoticeNo, key.DateOfSuspension, key.SrNo)
	if err != nil {
		return fmt.Errorf("failed to mark entry revived for notice %s: %w", key.NoticeNo, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// ListByNotice returns all ledger entries for a notice, oldest first.
func (l *Ledger) ListByNotice(ctx context.Context, noticeNo string) ([]*Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM suspended_notices
		 WHERE notice_no = $1 ORDER BY sr_no ASC`, noticeNo)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries for notice %s: %w", noticeNo, err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// ActiveByNotice returns the most recent not-yet-revived entry for a
// notice, or nil if no suspension is active.
func (l *Ledger) ActiveByNotice(ctx context.Context, noticeNo string) (*Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM suspended_notices
		 WHERE notice_no = $1 AND date_of_revival IS NULL
		 ORDER BY sr_no DESC LIMIT 1`, noticeNo)
	if err != nil {
		return nil, fmt.Errorf("failed to query active suspension for notice %s: %w", noticeNo, err)
	}
	defer rows.Close()

	entries, err := collectEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

// DueForRevival returns active temporary suspensions whose due date of
// revival is on or before asOf. An empty reason matches any reason.
func (l *Ledger) DueForRevival(ctx context.Context, asOf time.Time, reason codes.SuspensionReason) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM suspended_notices
		 WHERE suspension_type = $1 AND date_of_revival IS NULL AND due_date_of_revival <= $2`
	args := []interface{}{string(codes.SuspensionTemporary), asOf}
	if reason != "" {
		query += ` AND reason_of_suspension = $3`
		args = append(args, string(reason))
	}
	query += ` ORDER BY notice_no, sr_no`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due revivals: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// HoldsExpired returns active investigation-hold suspensions whose hold
// started on or before cutoff. Hold entries carry no due date of revival;
// the hold length is policy and lives with the caller.
func (l *Ledger) HoldsExpired(ctx context.Context, cutoff time.Time) ([]*Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM suspended_notices
		 WHERE suspension_type = $1 AND reason_of_suspension = $2
		   AND date_of_revival IS NULL AND date_of_suspension <= $3
		 ORDER BY notice_no, sr_no`,
		string(codes.SuspensionTemporary), string(codes.ReasonInvestigation), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired investigation holds: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var e Entry
		var caseRef, remarks, revReason, revOfficer, revRemarks sql.NullString
		var dueDate, revivedAt sql.NullTime

		err := rows.Scan(&e.NoticeNo, &e.DateOfSuspension, &e.SrNo, &e.SuspensionSource, &caseRef,
			&e.SuspensionType, &e.ReasonOfSuspension, &e.AuthorisingOfficer, &dueDate, &remarks,
			&revivedAt, &revReason, &revOfficer, &revRemarks)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		e.CaseRef = caseRef.String
		e.Remarks = remarks.String
		e.RevivalReason = revReason.String
		e.RevivalOfficer = revOfficer.String
		e.RevivalRemarks = revRemarks.String
		if dueDate.Valid {
			t := dueDate.Time
			e.DueDateOfRevival = &t
		}
		if revivedAt.Valid {
			t := revivedAt.Time
			e.DateOfRevival = &t
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

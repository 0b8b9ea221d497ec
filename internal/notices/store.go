package notices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/terminal-bench/noticeflow/internal/codes"
)

var (
	// ErrNotFound is returned when a notice number does not resolve.
	ErrNotFound = errors.New("notice not found")
	// ErrVersionConflict is returned when an optimistic update loses the race.
	ErrVersionConflict = errors.New("notice version conflict")
)

const noticeColumns = `notice_no, vehicle_no, vehicle_category, vehicle_registration_type,
	composition_amount, amount_payable, computer_rule_code,
	last_processing_stage, next_processing_stage,
	suspension_type, reason_of_suspension, date_of_suspension, due_date_of_revival,
	payment_status, version`

// Store reads and writes the canonical notice table.
type Store struct {
	db *sql.DB
}

// NewStore creates a notice store over an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetByNoticeNo loads a notice by its number.
func (s *Store) GetByNoticeNo(ctx context.Context, noticeNo string) (*Notice, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+noticeColumns+` FROM notices WHERE notice_no = $1`, noticeNo)
	return scanNotice(row)
}

// ListAtStages returns notices whose next processing stage is one of the
// given stages. The looping clearance engine uses it with the two final
// escalation stages.
func (s *Store) ListAtStages(ctx context.Context, stages ...codes.Stage) ([]*Notice, error) {
	stageStrs := make([]string, len(stages))
	for i, st := range stages {
		stageStrs[i] = string(st)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noticeColumns+` FROM notices WHERE next_processing_stage = ANY($1)`,
		pq.Array(stageStrs))
	if err != nil {
		return nil, fmt.Errorf("failed to list notices by stage: %w", err)
	}
	defer rows.Close()

	var result []*Notice
	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotice(row rowScanner) (*Notice, error) {
	var n Notice
	var reason, suspType sql.NullString
	var dateOfSusp, dueDate sql.NullTime

	err := row.Scan(&n.NoticeNo, &n.VehicleNo, &n.VehicleCategory, &n.VehicleRegistrationType,
		&n.CompositionAmount, &n.AmountPayable, &n.ComputerRuleCode,
		&n.LastProcessingStage, &n.NextProcessingStage,
		&suspType, &reason, &dateOfSusp, &dueDate,
		&n.PaymentStatus, &n.Version)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan notice: %w", err)
	}

	n.SuspensionType = codes.SuspensionType(suspType.String)
	n.ReasonOfSuspension = codes.SuspensionReason(reason.String)
	if dateOfSusp.Valid {
		t := dateOfSusp.Time
		n.DateOfSuspension = &t
	}
	if dueDate.Valid {
		t := dueDate.Time
		n.DueDateOfRevival = &t
	}
	return &n, nil
}

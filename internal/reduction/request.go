// Package reduction implements the reduction workflow: validation,
// transactional persistence, audit logging and orchestration.
package reduction

import (
	"fmt"
	"time"

	"github.com/terminal-bench/noticeflow/internal/codes"
	"github.com/terminal-bench/noticeflow/internal/notices"
	"github.com/terminal-bench/noticeflow/pkg/money"
)

// Request is a validated inbound reduction request.
type Request struct {
	NoticeNo          string
	AmountReduced     money.Amount
	AmountPayable     money.Amount
	ReasonOfReduction string
	AuthorisedOfficer string
	SuspensionSource  codes.Subsystem
	DateOfReduction   time.Time
	// ExpiryDate bounds the reduction window; nil means no expiry was
	// supplied and no due date of revival is recorded.
	ExpiryDate *time.Time
	Remarks    string
}

// startOfDay drops the time-of-day component while keeping the location,
// so that calendar-date comparisons line up with the clock's zone.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Context is the ephemeral unit of work passed from validation to
// persistence. It carries the loaded notice, the resolved rule and stage,
// and the serial number shared by the ledger entry and the reduction log.
type Context struct {
	Request          *Request
	Notice           *notices.Notice
	ComputerRuleCode int
	Stage            codes.Stage
	SrNo             int
	StartedAt        time.Time
	AuditContext     string
}

// NewContext assembles the unit of work for a loaded notice. srNo is a
// freshly allocated sequence number reused by both the ledger entry and
// the reduction-amount log so the two records stay traceable to one
// transaction.
func NewContext(req *Request, n *notices.Notice, srNo int, now time.Time) *Context {
	return &Context{
		Request:          req,
		Notice:           n,
		ComputerRuleCode: n.ComputerRuleCode,
		Stage:            n.LastProcessingStage,
		SrNo:             srNo,
		StartedAt:        now,
		AuditContext: fmt.Sprintf("Reduction requested by %s from source %s at %s",
			req.AuthorisedOfficer, req.SuspensionSource, now.Format(time.RFC3339)),
	}
}

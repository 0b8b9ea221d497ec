// Package revival implements the scheduled batch passes that lift due
// temporary suspensions and maintain clearance suspensions on protected
// vehicles at the final escalation stages.
package revival

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/terminal-bench/noticeflow/internal/codes"
	"github.com/terminal-bench/noticeflow/internal/notices"
	"github.com/terminal-bench/noticeflow/internal/suspension"
	"github.com/terminal-bench/noticeflow/pkg/messaging"
	"github.com/terminal-bench/noticeflow/pkg/suspensionapi"
)

const (
	remarkDueRevival  = "Auto-revived on due date"
	remarkHoldRevival = "Auto-revived after investigation hold ended"
	remarkClearance   = "Clearance suspension applied pending payment"
	remarkClearanceRe = "Clearance suspension reapplied after interim suspension revived"
)

// LedgerSource reads and updates the suspension ledger.
type LedgerSource interface {
	DueForRevival(ctx context.Context, asOf time.Time, reason codes.SuspensionReason) ([]*suspension.Entry, error)
	HoldsExpired(ctx context.Context, cutoff time.Time) ([]*suspension.Entry, error)
	ListByNotice(ctx context.Context, noticeNo string) ([]*suspension.Entry, error)
	ActiveByNotice(ctx context.Context, noticeNo string) (*suspension.Entry, error)
	NextSerial(ctx context.Context, noticeNo string) (int, error)
	Append(ctx context.Context, e *suspension.Entry) error
	MarkRevived(ctx context.Context, key suspension.EntryKey, revivedAt time.Time, reason, officer, remarks string) error
}

// NoticeSource reads notice state.
type NoticeSource interface {
	GetByNoticeNo(ctx context.Context, noticeNo string) (*notices.Notice, error)
	ListAtStages(ctx context.Context, stages ...codes.Stage) ([]*notices.Notice, error)
}

// SuspensionAPI is the remote writer for notice suspension state.
type SuspensionAPI interface {
	ApplyRevivalSingle(ctx context.Context, noticeNo, remarks, officer string, source codes.Subsystem) (*suspensionapi.Response, error)
	ApplySuspensionSingle(ctx context.Context, req suspensionapi.SuspensionRequest) (*suspensionapi.Response, error)
}

// EventPublisher publishes batch audit events. A nil publisher degrades to
// log-only reporting.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// BatchResult summarises one pass over the ledger or notice set.
type BatchResult struct {
	Pass      string    `json:"pass"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	Scanned   int       `json:"scanned"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
}

type counter struct {
	mu sync.Mutex
	r  BatchResult
}

func (c *counter) succeed() { c.mu.Lock(); c.r.Succeeded++; c.mu.Unlock() }
func (c *counter) fail()    { c.mu.Lock(); c.r.Failed++; c.mu.Unlock() }
func (c *counter) skip()    { c.mu.Lock(); c.r.Skipped++; c.mu.Unlock() }

// Engine runs the revival passes. Notice rows are only ever written through
// the suspension API; the engine's own writes are confined to the ledger.
type Engine struct {
	ledger      LedgerSource
	notices     NoticeSource
	api         SuspensionAPI
	events      EventPublisher
	parallelism int
	holdDays    int
	now         func() time.Time
}

func NewEngine(ledger LedgerSource, noticeSource NoticeSource, api SuspensionAPI, events EventPublisher, parallelism, holdDays int) *Engine {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Engine{
		ledger:      ledger,
		notices:     noticeSource,
		api:         api,
		events:      events,
		parallelism: parallelism,
		holdDays:    holdDays,
		now:         time.Now,
	}
}

// Run executes the three passes in order. The investigation-hold pass goes
// first so its entries carry a revival date before the standard pass scans
// the ledger, and the looping pass goes last so it sees the post-revival
// state. A failing pass does not stop the later ones.
func (e *Engine) Run(ctx context.Context) []BatchResult {
	results := make([]BatchResult, 0, 3)
	for _, pass := range []func(context.Context) BatchResult{
		e.RunInvestigationHold,
		e.RunStandard,
		e.RunLooping,
	} {
		r := pass(ctx)
		results = append(results, r)
		e.report(ctx, r)
	}
	return results
}

// RunInvestigationHold revives investigation-hold suspensions whose hold
// period has elapsed. Entries on vehicles that lost their protected status
// are left for manual review.
func (e *Engine) RunInvestigationHold(ctx context.Context) BatchResult {
	c := e.newCounter("investigation_hold")
	cutoff := e.now().AddDate(0, 0, -e.holdDays)
	entries, err := e.ledger.HoldsExpired(ctx, cutoff)
	if err != nil {
		log.Printf("revival: investigation hold scan failed: %v", err)
		c.r.Failed++
		return e.finish(c)
	}
	c.r.Scanned = len(entries)

	e.forEachEntry(ctx, entries, func(ctx context.Context, entry *suspension.Entry) {
		notice, err := e.notices.GetByNoticeNo(ctx, entry.NoticeNo)
		if err != nil {
			log.Printf("revival: load notice %s: %v", entry.NoticeNo, err)
			c.fail()
			return
		}
		if !notice.Protected() {
			log.Printf("revival: notice %s no longer on a protected vehicle, skipping hold revival", entry.NoticeNo)
			c.skip()
			return
		}
		e.revive(ctx, entry, remarkHoldRevival, c)
	})
	return e.finish(c)
}

// RunStandard revives every temporary suspension whose due date of revival
// has arrived.
func (e *Engine) RunStandard(ctx context.Context) BatchResult {
	c := e.newCounter("standard")
	entries, err := e.ledger.DueForRevival(ctx, e.now(), "")
	if err != nil {
		log.Printf("revival: due date scan failed: %v", err)
		c.r.Failed++
		return e.finish(c)
	}
	c.r.Scanned = len(entries)

	e.forEachEntry(ctx, entries, func(ctx context.Context, entry *suspension.Entry) {
		e.revive(ctx, entry, remarkDueRevival, c)
	})
	return e.finish(c)
}

// RunLooping keeps unpaid notices on protected vehicles suspended at the
// final escalation stages. A clearance suspension carries no due date of
// revival, so payment is its only exit; when an interposed suspension was
// revived underneath a cleared one, the clearance is reapplied.
func (e *Engine) RunLooping(ctx context.Context) BatchResult {
	c := e.newCounter("looping")
	list, err := e.notices.ListAtStages(ctx, codes.StageRR3, codes.StageDR3)
	if err != nil {
		log.Printf("revival: final stage scan failed: %v", err)
		c.r.Failed++
		return e.finish(c)
	}
	c.r.Scanned = len(list)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for _, notice := range list {
		notice := notice
		g.Go(func() error {
			e.loopOne(gctx, notice, c)
			return nil
		})
	}
	_ = g.Wait()
	return e.finish(c)
}

func (e *Engine) loopOne(ctx context.Context, notice *notices.Notice, c *counter) {
	if !notice.Protected() || notice.PaymentRecorded() {
		c.skip()
		return
	}

	active, err := e.ledger.ActiveByNotice(ctx, notice.NoticeNo)
	if err != nil {
		log.Printf("revival: active suspension lookup for %s: %v", notice.NoticeNo, err)
		c.fail()
		return
	}
	if active != nil && active.ReasonOfSuspension == codes.ReasonClearanceLoop {
		c.skip()
		return
	}

	// Any other active suspension, interim or not, still gets the clearance
	// layered on top: only an active clearance itself or payment stops the
	// loop. History decides the remark, nothing more.
	remarks := remarkClearance
	revivedClearance, err := e.hadRevivedClearance(ctx, notice.NoticeNo)
	if err != nil {
		log.Printf("revival: ledger history for %s: %v", notice.NoticeNo, err)
		c.fail()
		return
	}
	if revivedClearance {
		remarks = remarkClearanceRe
	}

	resp, err := e.api.ApplySuspensionSingle(ctx, suspensionapi.SuspensionRequest{
		NoticeNo:           notice.NoticeNo,
		SuspensionType:     codes.SuspensionTemporary,
		ReasonOfSuspension: codes.ReasonClearanceLoop,
		AuthorisingOfficer: codes.DefaultSystemActor,
		SuspensionSource:   codes.SubsystemOCMS,
		Remarks:            remarks,
	})
	if err != nil {
		log.Printf("revival: clearance suspension for %s: %v", notice.NoticeNo, err)
		c.fail()
		return
	}
	if !resp.OK() {
		log.Printf("revival: clearance suspension for %s rejected: %s", notice.NoticeNo, resp.ErrorMessage())
		c.fail()
		return
	}

	srNo, err := e.ledger.NextSerial(ctx, notice.NoticeNo)
	if err != nil {
		log.Printf("revival: serial for %s: %v", notice.NoticeNo, err)
		c.fail()
		return
	}
	entry := &suspension.Entry{
		NoticeNo:           notice.NoticeNo,
		DateOfSuspension:   e.now(),
		SrNo:               srNo,
		SuspensionSource:   codes.SubsystemOCMS,
		SuspensionType:     codes.SuspensionTemporary,
		ReasonOfSuspension: codes.ReasonClearanceLoop,
		AuthorisingOfficer: codes.DefaultSystemActor,
		Remarks:            remarks,
	}
	if err := e.ledger.Append(ctx, entry); err != nil {
		log.Printf("revival: record clearance suspension for %s: %v", notice.NoticeNo, err)
		c.fail()
		return
	}
	c.succeed()
	e.publishNotice(ctx, messaging.EventTypeSuspensionApplied, notice.NoticeNo, remarks)
}

// hadRevivedClearance reports whether the notice carries at least one
// clearance suspension that has since been revived.
func (e *Engine) hadRevivedClearance(ctx context.Context, noticeNo string) (bool, error) {
	history, err := e.ledger.ListByNotice(ctx, noticeNo)
	if err != nil {
		return false, err
	}
	for _, entry := range history {
		if entry.ReasonOfSuspension == codes.ReasonClearanceLoop && !entry.Active() {
			return true, nil
		}
	}
	return false, nil
}

// revive lifts one ledger entry through the suspension API and, only after
// the API confirms, marks the entry revived locally.
func (e *Engine) revive(ctx context.Context, entry *suspension.Entry, remarks string, c *counter) {
	resp, err := e.api.ApplyRevivalSingle(ctx, entry.NoticeNo, remarks, codes.DefaultSystemActor, codes.SubsystemOCMS)
	if err != nil {
		log.Printf("revival: notice %s: %v", entry.NoticeNo, err)
		c.fail()
		e.publishNotice(ctx, messaging.EventTypeRevivalFailed, entry.NoticeNo, err.Error())
		return
	}
	if !resp.OK() {
		log.Printf("revival: notice %s rejected: %s", entry.NoticeNo, resp.ErrorMessage())
		c.fail()
		e.publishNotice(ctx, messaging.EventTypeRevivalFailed, entry.NoticeNo, resp.ErrorMessage())
		return
	}

	if err := e.ledger.MarkRevived(ctx, entry.Key(), e.now(),
		string(entry.ReasonOfSuspension), codes.DefaultSystemActor, remarks); err != nil {
		// The notice side is already revived; the next scan will not pick
		// this entry up again once the ledger write eventually lands.
		log.Printf("revival: mark ledger entry %s/%d revived: %v", entry.NoticeNo, entry.SrNo, err)
		c.fail()
		return
	}
	c.succeed()
	e.publishNotice(ctx, messaging.EventTypeRevivalApplied, entry.NoticeNo, remarks)
}

// forEachEntry fans entries out over a bounded worker group. Workers never
// return an error; each failure is counted and the batch continues.
func (e *Engine) forEachEntry(ctx context.Context, entries []*suspension.Entry, fn func(context.Context, *suspension.Entry)) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			fn(gctx, entry)
			return nil
		})
	}
	_ = g.Wait()
}

// publishNotice emits a best-effort per-notice event.
func (e *Engine) publishNotice(ctx context.Context, eventType, noticeNo, detail string) {
	if e.events == nil {
		return
	}
	evt := messaging.NewEvent(eventType, noticeNo, "revival-engine", map[string]string{"detail": detail})
	if err := e.events.Publish(ctx, eventType, evt); err != nil {
		log.Printf("revival: publish %s for %s: %v", eventType, noticeNo, err)
	}
}

func (e *Engine) newCounter(pass string) *counter {
	return &counter{r: BatchResult{Pass: pass, StartedAt: e.now()}}
}

func (e *Engine) finish(c *counter) BatchResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.r.Duration = e.now().Sub(c.r.StartedAt).String()
	return c.r
}

func (e *Engine) report(ctx context.Context, r BatchResult) {
	log.Printf("revival: pass %s scanned=%d succeeded=%d failed=%d skipped=%d in %s",
		r.Pass, r.Scanned, r.Succeeded, r.Failed, r.Skipped, r.Duration)
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, messaging.EventTypeRevivalBatchResult, r); err != nil {
		log.Printf("revival: publish batch result: %v", err)
	}
}

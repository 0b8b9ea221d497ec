// Package notices holds the canonical offence notice record and its store.
package notices

import (
	"time"

	"github.com/terminal-bench/noticeflow/internal/codes"
	"github.com/terminal-bench/noticeflow/pkg/money"
)

// Notice is a single offence case tracked through processing stages.
//
// The suspension fields are a snapshot of the currently active suspension;
// the full history lives in the suspension ledger. If SuspensionType is
// empty, ReasonOfSuspension, DateOfSuspension and DueDateOfRevival must be
// unset too.
type Notice struct {
	NoticeNo                string                 `json:"notice_no"`
	VehicleNo               string                 `json:"vehicle_no"`
	VehicleCategory         string                 `json:"vehicle_category"`
	VehicleRegistrationType string                 `json:"vehicle_registration_type"`
	CompositionAmount       money.Amount           `json:"composition_amount"`
	AmountPayable           money.Amount           `json:"amount_payable"`
	ComputerRuleCode        int                    `json:"computer_rule_code"`
	LastProcessingStage     codes.Stage            `json:"last_processing_stage"`
	NextProcessingStage     codes.Stage            `json:"next_processing_stage"`
	SuspensionType          codes.SuspensionType   `json:"suspension_type"`
	ReasonOfSuspension      codes.SuspensionReason `json:"reason_of_suspension"`
	DateOfSuspension        *time.Time             `json:"date_of_suspension,omitempty"`
	DueDateOfRevival        *time.Time             `json:"due_date_of_revival,omitempty"`
	PaymentStatus           string                 `json:"payment_status"`
	Version                 int                    `json:"version"`
}

// Suspended reports whether a suspension is currently active on the notice.
func (n *Notice) Suspended() bool {
	return n.SuspensionType != codes.SuspensionNone
}

// PaymentRecorded reports whether any payment has been accepted against
// the notice, either via the payment status or a payment suspension reason.
func (n *Notice) PaymentRecorded() bool {
	if n.PaymentStatus == codes.PaymentStatusFull {
		return true
	}
	return n.ReasonOfSuspension.PaymentRecorded()
}

// Protected reports whether the notice's vehicle is in the protected
// category subject to investigation-hold and looping clearance handling.
func (n *Notice) Protected() bool {
	return n.VehicleRegistrationType == codes.ProtectedVehicleFlag
}

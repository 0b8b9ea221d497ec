// Package codes holds the enumerated code registries shared across the
// notice workflow: suspension types, suspension reasons, subsystem codes
// and processing stages.
package codes

// SuspensionType classifies a hold on a notice's forward processing.
type SuspensionType string

const (
	SuspensionNone      SuspensionType = ""
	SuspensionTemporary SuspensionType = "TS"
	SuspensionPermanent SuspensionType = "PS"
)

// Valid reports whether t is a known suspension type.
func (t SuspensionType) Valid() bool {
	switch t {
	case SuspensionNone, SuspensionTemporary, SuspensionPermanent:
		return true
	}
	return false
}

// SuspensionReason tags a suspension with its legal cause.
type SuspensionReason string

const (
	ReasonFullPayment       SuspensionReason = "FP"  // full payment received
	ReasonPartialAmount     SuspensionReason = "PRA" // partial payment received
	ReasonReduction         SuspensionReason = "RED" // reduction applied
	ReasonDeceased          SuspensionReason = "RIP"
	ReasonDeceasedPreDate   SuspensionReason = "RP2" // date of death before offence date
	ReasonNoRegisteredOwner SuspensionReason = "NRO"
	ReasonOwnerVerification SuspensionReason = "ROV"
	ReasonNoProcessing      SuspensionReason = "NPA"
	ReasonEnforcementNA     SuspensionReason = "ENA"
	ReasonHouseTenant       SuspensionReason = "HST"
	ReasonAmountMismatch    SuspensionReason = "PAM"
	ReasonUnclaimed         SuspensionReason = "UNC"
	ReasonInvestigation     SuspensionReason = "OLD" // protected-vehicle investigation hold
	ReasonClearanceLoop     SuspensionReason = "CLV" // protected-vehicle looping clearance
	ReasonSystem            SuspensionReason = "SYS"
)

// PaymentRecorded reports whether the reason indicates a payment has been
// accepted against the notice. A paid notice can never be reduced.
func (r SuspensionReason) PaymentRecorded() bool {
	return r == ReasonFullPayment || r == ReasonPartialAmount
}

// Subsystem identifies the external system from which a suspension or
// revival originated.
type Subsystem string

const (
	SubsystemCES  Subsystem = "001"
	SubsystemEEPS Subsystem = "003"
	SubsystemOCMS Subsystem = "004"
	SubsystemPLUS Subsystem = "005"
)

// DefaultSystemActor is the officer recorded on automated transitions.
const DefaultSystemActor = "ocmsiz_app_conn"

// Stage is a notice processing stage code.
type Stage string

const (
	StageNPA Stage = "NPA"
	StageROV Stage = "ROV"
	StageENA Stage = "ENA"
	StageRD1 Stage = "RD1"
	StageRD2 Stage = "RD2"
	StageRR3 Stage = "RR3"
	StageDN1 Stage = "DN1"
	StageDN2 Stage = "DN2"
	StageDR3 Stage = "DR3"
)

// reductionStages is the full list of stages at which a notice with an
// eligible rule code may be reduced.
var reductionStages = map[Stage]struct{}{
	StageNPA: {}, StageROV: {}, StageENA: {},
	StageRD1: {}, StageRD2: {}, StageRR3: {},
	StageDN1: {}, StageDN2: {}, StageDR3: {},
}

// ReductionEligible reports whether s allows reduction for notices whose
// rule code is in the eligible list.
func (s Stage) ReductionEligible() bool {
	_, ok := reductionStages[s]
	return ok
}

// FinalEscalation reports whether s is one of the two terminal escalation
// stages. Notices with non-eligible rule codes may only be reduced here,
// and the looping clearance engine only considers notices parked here.
func (s Stage) FinalEscalation() bool {
	return s == StageRR3 || s == StageDR3
}

// ProtectedVehicleFlag is the vehicle registration type marking the
// protected category subject to investigation-hold and looping handling.
const ProtectedVehicleFlag = "V"

// PaymentStatusFull marks a notice whose full payment has been recorded.
const PaymentStatusFull = "FP"

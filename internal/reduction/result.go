package reduction

import "net/http"

// Outcome discriminates the four mutually exclusive reduction results.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeValidationError
	OutcomeBusinessError
	OutcomeTechnicalError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeValidationError:
		return "validation_error"
	case OutcomeBusinessError:
		return "business_error"
	case OutcomeTechnicalError:
		return "technical_error"
	default:
		return "unknown"
	}
}

// Stable machine-readable result codes.
const (
	CodeNoticeNotFound         = "NOTICE_NOT_FOUND"
	CodeNoticePaid             = "NOTICE_PAID"
	CodeNotEligible            = "NOT_ELIGIBLE"
	CodeInvalidReductionAmount = "INVALID_REDUCTION_AMOUNT"
	CodeInconsistentAmounts    = "INCONSISTENT_AMOUNTS"
	CodeNegativeAmount         = "NEGATIVE_AMOUNT"
	CodeInvalidDates           = "INVALID_DATES"
	CodeInvalidFormat          = "INVALID_FORMAT"
	CodeMissingData            = "MISSING_DATA"
	CodeOptimisticLockFailure  = "OPTIMISTIC_LOCK_FAILURE"
	CodeReductionFail          = "REDUCTION_FAIL"
	CodeSystemUnavailable      = "SYSTEM_UNAVAILABLE"
)

// Result is the tagged outcome of a reduction request. Exactly one outcome
// applies; the Reason field is populated only for NOT_ELIGIBLE business
// errors, and Idempotent only for successes that repeated an earlier
// reduction. Technical detail never crosses this boundary - Message is
// always safe to return to the caller.
type Result struct {
	Outcome    Outcome
	NoticeNo   string
	Code       string
	Message    string
	Reason     string
	Idempotent bool
}

// Success builds a first-time success result.
func Success(noticeNo, message string) Result {
	return Result{Outcome: OutcomeSuccess, NoticeNo: noticeNo, Message: message}
}

// IdempotentSuccess builds a success for a request whose effect was already
// applied. Indistinguishable from first-time success in the response shape.
func IdempotentSuccess(noticeNo, message string) Result {
	return Result{Outcome: OutcomeSuccess, NoticeNo: noticeNo, Message: message, Idempotent: true}
}

// ValidationError builds a result for a malformed or inconsistent request.
func ValidationError(code, message string) Result {
	return Result{Outcome: OutcomeValidationError, Code: code, Message: message}
}

// BusinessError builds a result for a request conflicting with domain state.
func BusinessError(code, message string) Result {
	return Result{Outcome: OutcomeBusinessError, Code: code, Message: message}
}

// NotEligible builds the NOT_ELIGIBLE business error with the specific rule
// that failed.
func NotEligible(message, reason string) Result {
	return Result{Outcome: OutcomeBusinessError, Code: CodeNotEligible, Message: message, Reason: reason}
}

// TechnicalError builds a result for an infrastructure failure. The message
// is the generic caller-safe text; internal detail belongs in logs only.
func TechnicalError(code, message string) Result {
	return Result{Outcome: OutcomeTechnicalError, Code: code, Message: message}
}

// HTTPStatus maps the result to its external status code.
func (r Result) HTTPStatus() int {
	switch r.Outcome {
	case OutcomeSuccess:
		return http.StatusOK
	case OutcomeValidationError:
		return http.StatusBadRequest
	case OutcomeBusinessError:
		if r.Code == CodeNoticeNotFound {
			return http.StatusNotFound
		}
		return http.StatusConflict
	case OutcomeTechnicalError:
		if r.Code == CodeSystemUnavailable {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ResponseMessage maps the result to the exact message string expected by
// external callers.
func (r Result) ResponseMessage() string {
	switch r.Outcome {
	case OutcomeSuccess:
		return "Reduction Success"
	case OutcomeValidationError:
		if r.Code == CodeMissingData {
			return "Missing data"
		}
		return "Invalid format"
	case OutcomeBusinessError:
		switch r.Code {
		case CodeNoticeNotFound:
			return "Notice not found"
		case CodeNoticePaid:
			return "Notice has been paid"
		case CodeNotEligible:
			return "Notice is not eligible"
		default:
			return "Notice is not eligible"
		}
	case OutcomeTechnicalError:
		if r.Code == CodeSystemUnavailable {
			return "System unavailable"
		}
		return "Reduction fail"
	default:
		return "Reduction fail"
	}
}

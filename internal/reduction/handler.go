package reduction

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/terminal-bench/noticeflow/internal/codes"
	"github.com/terminal-bench/noticeflow/pkg/money"
)

const dateLayout = "2006-01-02"

// reductionRequest is the inbound JSON shape. All fields arrive as strings
// so that missing data and unparseable data can be reported separately.
type reductionRequest struct {
	NoticeNo              string `json:"notice_no"`
	AmountReduced         string `json:"amount_reduced"`
	AmountPayable         string `json:"amount_payable"`
	ReasonOfReduction     string `json:"reason_of_reduction"`
	AuthorisedOfficer     string `json:"authorised_officer"`
	SuspensionSource      string `json:"suspension_source"`
	DateOfReduction       string `json:"date_of_reduction"`
	ExpiryDateOfReduction string `json:"expiry_date_of_reduction"`
	Remarks               string `json:"remarks"`
}

type reductionResponse struct {
	NoticeNo string `json:"notice_no,omitempty"`
	Message  string `json:"message"`
	Code     string `json:"code,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Handler exposes the reduction workflow over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the reduction endpoints.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.POST("/api/v1/plus-apply-reduction", h.applyReduction)
}

func (h *Handler) applyReduction(c *gin.Context) {
	var body reductionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reductionResponse{
			Message: "Invalid format",
			Code:    CodeInvalidFormat,
		})
		return
	}

	if missing := body.missingFields(); missing != "" {
		c.JSON(http.StatusBadRequest, reductionResponse{
			NoticeNo: body.NoticeNo,
			Message:  "Missing data",
			Code:     CodeMissingData,
			Reason:   missing,
		})
		return
	}

	req, err := body.toRequest()
	if err != nil {
		c.JSON(http.StatusBadRequest, reductionResponse{
			NoticeNo: body.NoticeNo,
			Message:  "Invalid format",
			Code:     CodeInvalidFormat,
		})
		return
	}

	result := h.service.HandleReduction(c.Request.Context(), req)
	c.JSON(result.HTTPStatus(), reductionResponse{
		NoticeNo: body.NoticeNo,
		Message:  result.ResponseMessage(),
		Code:     result.Code,
		Reason:   result.Reason,
	})
}

// missingFields names the first absent required field, or returns "".
func (r *reductionRequest) missingFields() string {
	required := []struct{ name, value string }{
		{"notice_no", r.NoticeNo},
		{"amount_reduced", r.AmountReduced},
		{"amount_payable", r.AmountPayable},
		{"authorised_officer", r.AuthorisedOfficer},
		{"suspension_source", r.SuspensionSource},
	}
	for _, f := range required {
		if f.value == "" {
			return f.name
		}
	}
	return ""
}

// toRequest parses the string fields into domain types. Any parse failure
// is an invalid-format error for the caller.
func (r *reductionRequest) toRequest() (*Request, error) {
	amountReduced, err := money.New(r.AmountReduced)
	if err != nil {
		return nil, err
	}
	amountPayable, err := money.New(r.AmountPayable)
	if err != nil {
		return nil, err
	}

	// A zero DateOfReduction means none was supplied; the service fills in
	// the current date from its own clock.
	var dateOfReduction time.Time
	if r.DateOfReduction != "" {
		dateOfReduction, err = time.Parse(dateLayout, r.DateOfReduction)
		if err != nil {
			return nil, err
		}
	}

	var expiry *time.Time
	if r.ExpiryDateOfReduction != "" {
		t, err := time.Parse(dateLayout, r.ExpiryDateOfReduction)
		if err != nil {
			return nil, err
		}
		expiry = &t
	}

	reason := r.ReasonOfReduction
	if reason == "" {
		reason = string(codes.ReasonReduction)
	}

	return &Request{
		NoticeNo:          r.NoticeNo,
		AmountReduced:     amountReduced,
		AmountPayable:     amountPayable,
		ReasonOfReduction: reason,
		AuthorisedOfficer: r.AuthorisedOfficer,
		SuspensionSource:  codes.Subsystem(r.SuspensionSource),
		DateOfReduction:   dateOfReduction,
		ExpiryDate:        expiry,
		Remarks:           r.Remarks,
	}, nil
}

package reduction

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(s *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(s).RegisterRoutes(r)
	return r
}

func postReduction(t *testing.T, r *gin.Engine, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plus-apply-reduction", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validBody() map[string]interface{} {
	return map[string]interface{}{
		"notice_no":           "N2025000001",
		"amount_reduced":      "20.00",
		"amount_payable":      "50.00",
		"reason_of_reduction": "RED",
		"authorised_officer":  "officer1",
		"suspension_source":   "005",
		"date_of_reduction":   "2025-06-15",
	}
}

func TestApplyReductionEndpoint(t *testing.T) {
	t.Run("should apply a valid reduction", func(t *testing.T) {
		s := newTestService(&fakeLoader{notice: testNotice()}, &fakePersister{})
		w := postReduction(t, newTestRouter(s), validBody())

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Reduction Success", resp["message"])
		assert.Equal(t, "N2025000001", resp["notice_no"])
	})

	t.Run("should default the reduction date when none is supplied", func(t *testing.T) {
		persister := &fakePersister{}
		s := newTestService(&fakeLoader{notice: testNotice()}, persister)
		body := validBody()
		delete(body, "date_of_reduction")
		w := postReduction(t, newTestRouter(s), body)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, persister.lastCtx)
		want := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, want, persister.lastCtx.Request.DateOfReduction)
	})

	t.Run("should report missing data for absent required fields", func(t *testing.T) {
		s := newTestService(&fakeLoader{notice: testNotice()}, &fakePersister{})
		body := validBody()
		delete(body, "authorised_officer")
		w := postReduction(t, newTestRouter(s), body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Missing data", resp["message"])
		assert.Equal(t, "authorised_officer", resp["reason"])
	})

	t.Run("should report invalid format for an unparseable amount", func(t *testing.T) {
		s := newTestService(&fakeLoader{notice: testNotice()}, &fakePersister{})
		body := validBody()
		body["amount_reduced"] = "twenty"
		w := postReduction(t, newTestRouter(s), body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Invalid format", resp["message"])
	})

	t.Run("should report invalid format for a bad date", func(t *testing.T) {
		s := newTestService(&fakeLoader{notice: testNotice()}, &fakePersister{})
		body := validBody()
		body["expiry_date_of_reduction"] = "15/06/2025"
		w := postReduction(t, newTestRouter(s), body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should report invalid format for malformed JSON", func(t *testing.T) {
		s := newTestService(&fakeLoader{notice: testNotice()}, &fakePersister{})
		r := newTestRouter(s)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/plus-apply-reduction", bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestService(&fakeLoader{notice: testNotice()}, &fakePersister{})
	r := newTestRouter(s)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

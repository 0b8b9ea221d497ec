package suspensionapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/noticeflow/internal/codes"
	"github.com/terminal-bench/noticeflow/pkg/circuit"
)

func TestApplyRevivalSingle(t *testing.T) {
	t.Run("should post the revival payload", func(t *testing.T) {
		var gotPath string
		var gotBody map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(Response{Success: true})
		}))
		defer srv.Close()

		c := NewClient(Config{BaseURL: srv.URL})
		resp, err := c.ApplyRevivalSingle(context.Background(),
			"N1", "Auto-revived on due date", codes.DefaultSystemActor, codes.SubsystemOCMS)

		require.NoError(t, err)
		assert.True(t, resp.OK())
		assert.Equal(t, "/v1/apply-revival", gotPath)
		assert.Equal(t, "N1", gotBody["notice_no"])
		assert.Equal(t, "Auto-revived on due date", gotBody["revival_remarks"])
		assert.Equal(t, codes.DefaultSystemActor, gotBody["authorising_officer"])
		assert.Equal(t, "004", gotBody["revival_source"])
	})

	t.Run("should surface an unsuccessful response without an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(Response{Success: false, Message: "notice is locked"})
		}))
		defer srv.Close()

		c := NewClient(Config{BaseURL: srv.URL})
		resp, err := c.ApplyRevivalSingle(context.Background(), "N1", "r", "o", codes.SubsystemOCMS)

		require.NoError(t, err)
		assert.False(t, resp.OK())
		assert.Equal(t, "notice is locked", resp.ErrorMessage())
	})
}

func TestApplySuspensionSingle(t *testing.T) {
	t.Run("should omit an absent due date", func(t *testing.T) {
		var gotBody map[string]interface{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(Response{Success: true})
		}))
		defer srv.Close()

		c := NewClient(Config{BaseURL: srv.URL})
		resp, err := c.ApplySuspensionSingle(context.Background(), SuspensionRequest{
			NoticeNo:           "N1",
			SuspensionType:     codes.SuspensionTemporary,
			ReasonOfSuspension: codes.ReasonClearanceLoop,
			AuthorisingOfficer: codes.DefaultSystemActor,
			SuspensionSource:   codes.SubsystemOCMS,
		})

		require.NoError(t, err)
		assert.True(t, resp.OK())
		assert.Equal(t, "TS", gotBody["suspension_type"])
		assert.Equal(t, "CLV", gotBody["reason_of_suspension"])
		_, hasDueDate := gotBody["due_date_of_revival"]
		assert.False(t, hasDueDate)
	})
}

func TestClientFailures(t *testing.T) {
	t.Run("should return an error on a server error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewClient(Config{BaseURL: srv.URL})
		_, err := c.ApplyRevivalSingle(context.Background(), "N1", "r", "o", codes.SubsystemOCMS)
		assert.Error(t, err)
	})

	t.Run("should time out a hung call", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		c := NewClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
		_, err := c.ApplyRevivalSingle(context.Background(), "N1", "r", "o", codes.SubsystemOCMS)
		assert.Error(t, err)
	})

	t.Run("should trip the breaker after repeated failures", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewClient(Config{BaseURL: srv.URL})
		for i := 0; i < 5; i++ {
			c.ApplyRevivalSingle(context.Background(), "N1", "r", "o", codes.SubsystemOCMS)
		}

		_, err := c.ApplyRevivalSingle(context.Background(), "N1", "r", "o", codes.SubsystemOCMS)
		assert.ErrorIs(t, err, circuit.ErrCircuitOpen)
	})
}

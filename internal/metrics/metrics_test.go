package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	t.Run("Should count replies per type", func(t *testing.T) {
		before := testutil.ToFloat64(chatReplies.WithLabelValues("order_status"))
		RecordReply("order_status")
		assert.Equal(t, before+1, testutil.ToFloat64(chatReplies.WithLabelValues("order_status")))
	})

	t.Run("Should count rate limited requests", func(t *testing.T) {
		before := testutil.ToFloat64(rateLimited)
		RecordRateLimited()
		assert.Equal(t, before+1, testutil.ToFloat64(rateLimited))
	})
}

func TestHandler(t *testing.T) {
	t.Run("Should expose registered collectors", func(t *testing.T) {
		RecordTopic("switch", "heuristic")
		rr := httptest.NewRecorder()
		Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "shopdesk_topic_classifications_total")
	})
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

func TestMiddlewareRecordsStatus(t *testing.T) {
	handler := Middleware("/webhook/twilio", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	before := testutil.ToFloat64(webhookRequests.WithLabelValues("401"))
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.ToFloat64(webhookRequests.WithLabelValues("401")); got != before+1 {
		t.Errorf("expected 401 counter to increment, got %v (was %v)", got, before)
	}
}

func TestRecordTransition(t *testing.T) {
	before := testutil.ToFloat64(stateTransitions.WithLabelValues("initial", "registration"))
	RecordTransition(models.StateInitial, models.StateRegistration)
	if got := testutil.ToFloat64(stateTransitions.WithLabelValues("initial", "registration")); got != before+1 {
		t.Errorf("expected transition counter to increment, got %v (was %v)", got, before)
	}
}

func TestRecordMessageSent(t *testing.T) {
	before := testutil.ToFloat64(messagesSent.WithLabelValues("error"))
	RecordMessageSent(false)
	if got := testutil.ToFloat64(messagesSent.WithLabelValues("error")); got != before+1 {
		t.Errorf("expected error counter to increment, got %v (was %v)", got, before)
	}
}

package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	metrics, err := NewHTTPMetrics()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(TracingMiddleware())
	r.Use(MetricsMiddleware(metrics))
	r.Get("/api/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	})

	t.Run("passes status and body through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/records/3", nil))

		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})

	t.Run("records size", func(t *testing.T) {
		sr := newStatusRecorder(httptest.NewRecorder())
		_, _ = sr.Write([]byte("12345"))
		assert.Equal(t, int64(5), sr.size)
		assert.Equal(t, http.StatusOK, sr.statusCode)
	})

	t.Run("hijack unsupported by recorder", func(t *testing.T) {
		sr := newStatusRecorder(httptest.NewRecorder())
		_, _, err := sr.Hijack()
		assert.Error(t, err)
	})
}

func TestBusinessMetricsNilSafe(t *testing.T) {
	var m *BusinessMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordCapture(ctx, "camera", 10)
		m.RecordDelete(ctx, 1, 10)
		m.RecordSync(ctx, 2)
		m.RecordOTPSent(ctx, "log", true)
		m.RecordOTPVerification(ctx, "ok")
		m.RecordExport(ctx, "csv", 3, true)
	})

	real, err := NewBusinessMetrics()
	require.NoError(t, err)
	assert.NotPanics(t, func() { real.RecordCapture(ctx, "upload", 100) })
}

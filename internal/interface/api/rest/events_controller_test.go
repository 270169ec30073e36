package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/printmate/order-service/internal/models/errs"
	"github.com/printmate/order-service/internal/models/order"
	"github.com/printmate/order-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Lock in case of t.Parallel call.
type mockLifecycle struct {
	uploadOrder *order.Order
	uploadErr   error
	confirmErr  error
	precheckOK  bool
	confirms    int
	mu          sync.Mutex
}

func (m *mockLifecycle) OnUpload(
	_ context.Context, _ string, _ io.Reader, _ string,
) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	return m.uploadOrder, nil
}

func (m *mockLifecycle) OnPaymentConfirmed(_ context.Context, _ string, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirms++
	return m.confirmErr
}

func (m *mockLifecycle) OnPrecheckout(_ context.Context, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.precheckOK, nil
}

func newEventsRouter(service OrderLifecycle) chi.Router {
	router := chi.NewRouter()
	NewEventsController(service, logger.NewWithZap(zap.NewNop()), ChiServerOptions{
		BaseURL:    "/api/events",
		BaseRouter: router,
	})
	return router
}

func multipartUpload(t *testing.T, requesterID string) (*bytes.Buffer, string) {
	t.Helper()

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)

	if requesterID != "" {
		require.NoError(t, mw.WriteField("requester_id", requesterID))
	}

	fw, err := mw.CreateFormFile("file", "doc.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)

	require.NoError(t, mw.Close())

	return body, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	o := order.New("alice", "ref", "doc.pdf", 3, 300, "EUR")
	o.Status = order.AWAITING
	o.PaymentHandle = "handle-1"

	router := newEventsRouter(&mockLifecycle{uploadOrder: o})

	body, contentType := multipartUpload(t, "alice")
	r := httptest.NewRequest(http.MethodPost, "/api/events/upload", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusAccepted, w.Code)

	var res UploadResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, int64(300), res.Amount)
	assert.Equal(t, "3.00 EUR", res.AmountDisplay)
	assert.Equal(t, "handle-1", res.PaymentHandle)
}

func TestUploadMissingRequesterID(t *testing.T) {
	router := newEventsRouter(&mockLifecycle{})

	body, contentType := multipartUpload(t, "")
	r := httptest.NewRequest(http.MethodPost, "/api/events/upload", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadUnprocessableArtifact(t *testing.T) {
	router := newEventsRouter(&mockLifecycle{uploadErr: errs.ErrUnprocessableArtifact})

	body, contentType := multipartUpload(t, "alice")
	r := httptest.NewRequest(http.MethodPost, "/api/events/upload", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPaymentConfirmed(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		confirmErr error
		wantCode   int
		wantStatus string
	}{
		{
			name:       "ok",
			body:       `{"requester_id":"alice","amount":300}`,
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "duplicate is benign",
			body:       `{"requester_id":"alice","amount":300}`,
			confirmErr: errs.ErrAlreadyProcessed,
			wantCode:   http.StatusOK,
			wantStatus: "already processed",
		},
		{
			name:       "unknown order",
			body:       `{"requester_id":"nobody","amount":300}`,
			confirmErr: errs.ErrNotFound,
			wantCode:   http.StatusNotFound,
		},
		{
			name:       "amount mismatch",
			body:       `{"requester_id":"alice","amount":150}`,
			confirmErr: errs.ErrAmountMismatch,
			wantCode:   http.StatusConflict,
		},
		{
			name:     "missing amount",
			body:     `{"requester_id":"alice"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "empty body",
			body:     ``,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newEventsRouter(&mockLifecycle{confirmErr: tt.confirmErr})

			r := httptest.NewRequest(http.MethodPost, "/api/events/payment",
				strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, r)

			assert.Equal(t, tt.wantCode, w.Code)

			if tt.wantStatus != "" {
				var res StatusResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
				assert.Equal(t, tt.wantStatus, res.Status)
			}
		})
	}
}

func TestPrecheckout(t *testing.T) {
	router := newEventsRouter(&mockLifecycle{precheckOK: true})

	r := httptest.NewRequest(http.MethodPost, "/api/events/precheckout",
		strings.NewReader(`{"payment_handle":"handle-1"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var res PrecheckoutResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.True(t, res.OK)
}

package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sales_pipeline_backend/internal/leads/domain"
	"sales_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(t *testing.T) domain.OrderSnapshot {
	t.Helper()
	partnerID := uuid.New()
	lead := domain.Lead{ID: uuid.New(), OrganizationID: uuid.New(), Name: "Acme", Status: domain.StatusOpen, PartnerID: &partnerID}
	snap, err := domain.NewOrderSnapshot(lead, domain.Partner{ID: partnerID, Name: "Acme Ltda", TaxID: "12.345.678/0001-90"},
		[]domain.ProductLine{{ProductID: "P-1", Quantity: 2, UnitPriceCents: 10000}}, time.Now())
	require.NoError(t, err)
	return snap
}

func TestCreateOrderSendsSnapshotAndKeys(t *testing.T) {
	snap := testSnapshot(t)

	var gotKey, gotAPIKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")
		gotAPIKey = r.Header.Get("X-API-Key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"SO-1001"}`))
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL+"/", "secret", srv.Client())
	orderID, err := c.CreateOrder(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, "SO-1001", orderID)
	assert.Equal(t, snap.IdempotencyKey(), gotKey)
	assert.Equal(t, "secret", gotAPIKey)
	assert.EqualValues(t, 20000, gotBody["totalCents"])
}

func TestCreateOrderReplayReturnsExistingOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"orderId":"SO-7"}`))
	}))
	defer srv.Close()

	orderID, err := NewWithHTTPClient(srv.URL, "", srv.Client()).CreateOrder(context.Background(), testSnapshot(t))
	require.NoError(t, err)
	assert.Equal(t, "SO-7", orderID)
}

func TestCreateOrderClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   apperr.Kind
	}{
		{"rejected", http.StatusUnprocessableEntity, `{"message":"partner tax id invalid"}`, apperr.KindValidation},
		{"bad request without body", http.StatusBadRequest, ``, apperr.KindValidation},
		{"server error", http.StatusBadGateway, `upstream down`, apperr.KindUnavailable},
		{"throttled", http.StatusTooManyRequests, ``, apperr.KindUnavailable},
		{"success without id", http.StatusOK, `{}`, apperr.KindInternal},
		{"created without id", http.StatusCreated, `not json`, apperr.KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewWithHTTPClient(srv.URL, "", srv.Client()).CreateOrder(context.Background(), testSnapshot(t))
			assert.True(t, apperr.Is(err, tc.kind), "got %v", err)
		})
	}
}

func TestCreateOrderSuccessWithoutIDIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"accepted"}`))
	}))
	defer srv.Close()

	_, err := NewWithHTTPClient(srv.URL, "", srv.Client()).CreateOrder(context.Background(), testSnapshot(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingOrderID)
	assert.False(t, apperr.Is(err, apperr.KindUnavailable))
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, e.HTTPStatus())
}

func TestCreateOrderRejectedMessageIsSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"partner tax id invalid"}`))
	}))
	defer srv.Close()

	_, err := NewWithHTTPClient(srv.URL, "", srv.Client()).CreateOrder(context.Background(), testSnapshot(t))
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, e.Message, "partner tax id invalid")
}

func TestCreateOrderTimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	httpClient := srv.Client()
	httpClient.Timeout = 50 * time.Millisecond

	_, err := NewWithHTTPClient(srv.URL, "", httpClient).CreateOrder(context.Background(), testSnapshot(t))
	assert.True(t, apperr.Is(err, apperr.KindUnavailable), "got %v", err)
}

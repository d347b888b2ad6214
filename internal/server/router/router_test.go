package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/broiler/internal/apperror"
	"github.com/mamadbah2/broiler/internal/config"
	"github.com/mamadbah2/broiler/internal/domain/breeds"
	"github.com/mamadbah2/broiler/internal/domain/models"
	"github.com/mamadbah2/broiler/internal/metrics"
	"github.com/mamadbah2/broiler/internal/repository/memory"
	"github.com/mamadbah2/broiler/internal/server/handlers"
	"github.com/mamadbah2/broiler/internal/service/aggregation"
	"github.com/mamadbah2/broiler/internal/service/calculator"
	"github.com/mamadbah2/broiler/internal/service/inventory"
	"github.com/mamadbah2/broiler/internal/service/recording"
	"github.com/mamadbah2/broiler/internal/service/reporting"
	client "github.com/mamadbah2/broiler/pkg/clients/whatsapp"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := memory.NewStore()
	m := metrics.New(metrics.DefaultConfig())
	table := breeds.Default()
	costs := config.CostsConfig{Currency: "SAR", FeedPricePerKg: 2, DefaultLaborRatePerBirdPerDay: 0.01, ElectricityPerDay: 50}

	inv := inventory.NewService(store, m, nil)
	reports := reporting.NewService(store, aggregation.NewEngine(store, m, nil), calculator.NewCalculator(table, nil), costs,
		reporting.Options{Stock: inv, Archive: memory.NewReportArchive(), Metrics: m}, nil)
	rec := recording.NewService(store, inv, reports, m, nil)

	return New(Handlers{
		Cycles:    handlers.NewCycleHandler(rec, nil),
		Reports:   handlers.NewReportHandler(reports, nil),
		Inventory: handlers.NewInventoryHandler(inv, nil),
		Breeds:    handlers.NewBreedHandler(table),
	}, m, nil)
}

func TestBreedRoutes(t *testing.T) {
	h := newTestRouter(t)

	w := do(t, h, http.MethodGet, "/breeds", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Breeds []string `json:"breeds"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Contains(t, list.Breeds, "Ross 308")
	assert.Contains(t, list.Breeds, "Cobb 500")

	w = do(t, h, http.MethodGet, "/breeds/Ross%20308/curve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var curve struct {
		Breed   string    `json:"breed"`
		Weights []int  `json:"weights_grams"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &curve))
	assert.Equal(t, "Ross 308", curve.Breed)
	assert.NotEmpty(t, curve.Weights)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthz(t *testing.T) {
	w := do(t, newTestRouter(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/cycles/7", nil)
	req.Header.Set(headerRequestID, "req-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(headerRequestID))
	assert.Equal(t, "req-42", decodeError(t, w).RequestID)
}

func TestErrorMapping(t *testing.T) {
	h := newTestRouter(t)

	w := do(t, h, http.MethodGet, "/cycles/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, apperror.CodeCycleNotFound, resp.Code)
	assert.Equal(t, "99", resp.Details["cycle_id"])
	assert.Equal(t, "/cycles/99", resp.Path)

	w = do(t, h, http.MethodGet, "/cycles/abc/kpis", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, decodeError(t, w).Code)

	w = do(t, h, http.MethodPost, "/cycles", map[string]any{"name": "House A"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/breeds/Hubbard/curve", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, decodeError(t, w).Code)

	w = do(t, h, http.MethodGet, "/webhook", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInsufficientStockIsConflict(t *testing.T) {
	h := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/inventory", map[string]any{"name": "Starter feed", "unit": "kg", "quantity_on_hand": 30})
	require.Equal(t, http.StatusCreated, w.Code)
	var item models.InventoryItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))

	w = do(t, h, http.MethodPost, "/inventory/1/withdraw", map[string]any{"amount": 50})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeInsufficientStock, decodeError(t, w).Code)

	w = do(t, h, http.MethodPost, "/inventory/1/withdraw", map[string]any{"amount": 20})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.Equal(t, 10.0, item.QuantityOnHand)
}

func TestCycleLifecycle(t *testing.T) {
	h := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/cycles", map[string]any{
		"name": "House A", "breed": "Ross 308", "initial_bird_count": 1000, "chick_unit_price": 3.5,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var cycle models.Cycle
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cycle))

	w = do(t, h, http.MethodPost, "/cycles/1/daily-logs", map[string]any{"mortality_count": 5, "feed_kg": 40})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/cycles/1/transactions", map[string]any{"type": "income", "amount": 500})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/cycles/1/aggregates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var agg models.CycleAggregates
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &agg))
	assert.Equal(t, 5, agg.TotalMortality)
	assert.Equal(t, 40.0, agg.TotalFeedKg)
	assert.Equal(t, 500.0, agg.TotalIncome)

	w = do(t, h, http.MethodGet, "/cycles/1/report?format=text", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Cycle report: House A (Ross 308)")

	w = do(t, h, http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dash models.Dashboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dash))
	assert.Equal(t, 1, dash.ActiveCycles)
	assert.Equal(t, 995, dash.TotalBirds)

	w = do(t, h, http.MethodPost, "/cycles/1/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodPost, "/cycles/1/daily-logs", map[string]any{"mortality_count": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t)
	do(t, h, http.MethodGet, "/healthz", nil)

	w := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `broiler_http_requests_total{method="GET",path="/healthz",status="200"} 1`)
}

type fakeMessaging struct {
	payloads []models.WebhookPayload
	sendErr  error
}

func (f *fakeMessaging) VerifyWebhookToken(mode, token, challenge string) (string, error) {
	if mode != "subscribe" || token != "secret" {
		return "", errors.New("invalid verify token")
	}
	return challenge, nil
}

func (f *fakeMessaging) HandleWebhook(_ context.Context, payload models.WebhookPayload) error {
	f.payloads = append(f.payloads, payload)
	return errors.New("reply not delivered")
}

func (f *fakeMessaging) SendOutbound(context.Context, models.OutboundMessageRequest) error {
	return f.sendErr
}

func TestWebhookRoutes(t *testing.T) {
	messaging := &fakeMessaging{sendErr: &client.APIError{Status: 401, Code: 190, Message: "expired"}}
	h := New(Handlers{Webhook: handlers.NewWebhookHandler(messaging, nil)}, nil, nil)

	w := do(t, h, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=42", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())

	w = do(t, h, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "WEBHOOK_VERIFICATION_FAILED", decodeError(t, w).Code)

	w = do(t, h, http.MethodPost, "/webhook", map[string]any{"object": "whatsapp_business_account", "entry": []any{}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, messaging.payloads, 1)

	w = do(t, h, http.MethodPost, "/webhook", map[string]any{"object": "instagram"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, messaging.payloads, 1)

	w = do(t, h, http.MethodPost, "/send-message", map[string]any{"to": "966500000001", "message": "hi"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "WHATSAPP_DELIVERY_FAILED", resp.Code)
	assert.Equal(t, "190", resp.Details["api_code"])

	w = do(t, h, http.MethodPost, "/send-message", map[string]any{"to": "966500000001"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

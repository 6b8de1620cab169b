package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"burrito-backend/internal/auth"
	"burrito-backend/internal/clock"
	"burrito-backend/internal/config"
	"burrito-backend/internal/lock"
	"burrito-backend/internal/metrics"
	"burrito-backend/internal/models"
	"burrito-backend/internal/order"
	"burrito-backend/internal/schedule"
	"burrito-backend/internal/store"
	"burrito-backend/internal/store/storetest"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pacific = time.FixedZone("PDT", -7*3600)

type testServer struct {
	app   *fiber.App
	store *storetest.Memory
	clock *clock.Mock
	cfg   *config.Config
	admin string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		JWTSecret:        "0123456789abcdef0123456789abcdef",
		JWTTTL:           time.Hour,
		CORSOrigins:      "http://localhost:5173",
		Location:         pacific,
		Schedule:         config.ScheduleDefaults{WeeksAhead: 2, Capacity: 100},
		BurritoBasePrice: decimal.RequireFromString("8.70"),
	}
	st := storetest.New()
	clk := clock.NewMock(time.Date(2025, 6, 4, 12, 0, 0, 0, pacific))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	schedules := schedule.NewService(st, clk, lock.NewLocalLocker(), logger, m, cfg.Schedule)
	orders := order.NewService(st, schedules, clk, order.FlatPricer{Base: cfg.BurritoBasePrice}, logger, m)

	app := New(Deps{
		Config:    cfg,
		Logger:    logger,
		Clock:     clk,
		Store:     st,
		Schedules: schedules,
		Orders:    orders,
		Metrics:   m,
		Gatherer:  reg,
	})

	adminUser := &models.User{Name: "Chef", Email: "chef@example.com", PasswordHash: "x", Role: models.RoleAdmin}
	require.NoError(t, st.CreateUser(context.Background(), adminUser))
	token, err := auth.GenerateToken(cfg.JWTSecret, time.Hour, adminUser, time.Now())
	require.NoError(t, err)

	return &testServer{app: app, store: st, clock: clk, cfg: cfg, admin: token}
}

func (s *testServer) do(t *testing.T, method, path, body, token string) (int, map[string]any, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out, raw
}

func (s *testServer) createSchedule(t *testing.T, date string, capacity int) uint {
	t.Helper()
	status, body, raw := s.do(t, "POST", "/api/admin/schedules",
		fmt.Sprintf(`{"production_date":%q,"max_burritos":%d}`, date, capacity), s.admin)
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	return uint(body["id"].(float64))
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	status, body, _ := s.do(t, "GET", "/healthz", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/healthz", nil)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get(HeaderRequestID), 36)

	req = httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	resp, err = s.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get(HeaderRequestID))
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)

	status, _, _ := s.do(t, "GET", "/api/admin/schedules", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	customer := &models.User{Name: "Pat", Email: "pat@example.com", PasswordHash: "x", Role: models.RoleCustomer}
	require.NoError(t, s.store.CreateUser(context.Background(), customer))
	token, err := auth.GenerateToken(s.cfg.JWTSecret, time.Hour, customer, time.Now())
	require.NoError(t, err)
	status, _, _ = s.do(t, "GET", "/api/admin/schedules", "", token)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _, _ = s.do(t, "GET", "/api/admin/schedules", "", s.admin)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestScheduleErrorsMapToStatus(t *testing.T) {
	s := newTestServer(t)

	status, body, _ := s.do(t, "POST", "/api/admin/schedules", `{"production_date":"2025-06-10"}`, s.admin)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation_failed", body["code"])
	require.NotEmpty(t, body["fields"])

	s.createSchedule(t, "2025-06-07", 10)
	status, body, _ = s.do(t, "POST", "/api/admin/schedules", `{"production_date":"2025-06-07"}`, s.admin)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "duplicate", body["code"])

	status, _, _ = s.do(t, "GET", "/api/schedules/999", "", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestGuestOrderLifecycle(t *testing.T) {
	s := newTestServer(t)
	schedID := s.createSchedule(t, "2025-06-07", 3)

	status, body, raw := s.do(t, "POST", "/api/orders", fmt.Sprintf(`{
		"production_schedule_id": %d,
		"customer_name": "Maria Lopez",
		"customer_phone": "(555) 123-4567",
		"burritos": [{"name": "Carne asada"}, {"name": "Bean and cheese", "notes": "no onions"}]
	}`, schedID), "")
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	number := body["order_number"].(string)
	id := uint(body["id"].(float64))
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, true, body["is_guest"])
	assert.Equal(t, "+15551234567", body["customer_phone"])
	assert.Equal(t, "$18.92", body["money"].(map[string]any)["total_display"])

	status, _, _ = s.do(t, "GET", "/api/orders/"+number+"?phone=5550000000", "", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body, _ = s.do(t, "GET", "/api/orders/"+number+"?phone=555-123-4567", "", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Order Received", body["status_display"].(map[string]any)["label"])
	assert.Equal(t, "2025-06-07", body["production_date"])

	path := fmt.Sprintf("/api/admin/orders/%d/status", id)
	status, body, _ = s.do(t, "POST", path, `{"status":"ready"}`, s.admin)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "invalid_transition", body["code"])

	status, body, _ = s.do(t, "POST", path, `{"status":"teleported"}`, s.admin)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, body, _ = s.do(t, "POST", path, `{"status":"confirmed"}`, s.admin)
	require.Equal(t, fiber.StatusOK, status)
	assert.NotNil(t, body["estimated_ready_time"])

	_, stats, _ := s.do(t, "GET", fmt.Sprintf("/api/admin/schedules/%d/stats", schedID), "", s.admin)
	assert.Equal(t, float64(2), stats["stats"].(map[string]any)["reserved_capacity"])

	status, body, _ = s.do(t, "POST", "/api/orders/"+number+"/cancel", `{"phone":"5551234567"}`, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "cancelled", body["status"])

	_, stats, _ = s.do(t, "GET", fmt.Sprintf("/api/admin/schedules/%d/stats", schedID), "", s.admin)
	assert.Equal(t, float64(0), stats["stats"].(map[string]any)["reserved_capacity"])

	status, _, raw = s.do(t, "GET", "/api/admin/audit-logs?entity_type=order", "", s.admin)
	require.Equal(t, fiber.StatusOK, status)
	var logs []map[string]any
	require.NoError(t, json.Unmarshal(raw, &logs))
	assert.Len(t, logs, 3)
	assert.Equal(t, "Chef", logs[1]["user_name"])

	status, body, _ = s.do(t, "GET", "/api/admin/dashboard/capacity-chart", "", s.admin)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["grand_totals"].(map[string]any)["orders"])
}

func TestConfirmSoldOutReturnsConflict(t *testing.T) {
	s := newTestServer(t)
	schedID := s.createSchedule(t, "2025-06-07", 2)

	var ids []uint
	for i := 0; i < 2; i++ {
		status, body, raw := s.do(t, "POST", "/api/orders", fmt.Sprintf(`{
			"production_schedule_id": %d,
			"customer_name": "Guest %d",
			"customer_phone": "5551234567",
			"burritos": [{"name": "Chorizo"}, {"name": "Potato"}]
		}`, schedID, i), "")
		require.Equal(t, fiber.StatusCreated, status, string(raw))
		ids = append(ids, uint(body["id"].(float64)))
	}

	status, _, _ := s.do(t, "POST", fmt.Sprintf("/api/admin/orders/%d/status", ids[0]), `{"status":"confirmed"}`, s.admin)
	require.Equal(t, fiber.StatusOK, status)

	status, body, _ := s.do(t, "POST", fmt.Sprintf("/api/admin/orders/%d/status", ids[1]), `{"status":"confirmed"}`, s.admin)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "sold out, please choose another day", body["error"])
	assert.Equal(t, "capacity_exhausted", body["code"])
}

func TestOrderAfterCutoffIsUnprocessable(t *testing.T) {
	s := newTestServer(t)
	schedID := s.createSchedule(t, "2025-06-07", 10)
	s.clock.Set(time.Date(2025, 6, 7, 23, 0, 0, 0, pacific))

	status, body, _ := s.do(t, "POST", "/api/orders", fmt.Sprintf(`{
		"production_schedule_id": %d,
		"customer_name": "Late",
		"customer_phone": "5551234567",
		"burritos": [{"name": "Chorizo"}]
	}`, schedID), "")
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "ordering_closed", body["code"])
}

func TestAuthenticatedCustomerOrders(t *testing.T) {
	s := newTestServer(t)
	schedID := s.createSchedule(t, "2025-06-08", 10)

	status, body, raw := s.do(t, "POST", "/api/auth/register",
		`{"name":"Jess","email":"jess@example.com","phone":"5559876543","password":"al-pastor"}`, "")
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	token := body["token"].(string)

	status, body, raw = s.do(t, "POST", "/api/orders",
		fmt.Sprintf(`{"production_schedule_id": %d, "burritos": [{"name": "Veggie"}]}`, schedID), token)
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	assert.Equal(t, false, body["is_guest"])
	assert.Equal(t, "+15559876543", body["customer_phone"])

	req := httptest.NewRequest(http.MethodGet, "/api/me/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var mine []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&mine))
	require.Len(t, mine, 1)
	assert.Equal(t, "Jess", mine[0]["customer_name"])

	status, _, _ = s.do(t, "GET", "/api/me/orders", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, "GET", "/healthz", "", "")

	status, _, raw := s.do(t, "GET", "/metrics", "", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), "burrito_http_requests_total")
}

func TestErrorHandlerFallsBackTo500(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("database on fire") })

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(raw), "database on fire")
}

func TestErrorHandlerMapsConcurrentUpdateToConflict(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Post("/orders/:id/status", func(c *fiber.Ctx) error {
		return fmt.Errorf("order HLB-20250604-ABCD changed while moving to confirmed: %w", store.ErrConflict)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/orders/1/status", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "conflict", body["code"])
}

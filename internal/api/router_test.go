package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/liquor-inventory/internal/auth"
	"github.com/example/liquor-inventory/internal/command"
	"github.com/example/liquor-inventory/internal/dispatch"
	"github.com/example/liquor-inventory/internal/domain/alert"
	"github.com/example/liquor-inventory/internal/domain/inventory"
	"github.com/example/liquor-inventory/internal/infrastructure/alertstore"
	"github.com/example/liquor-inventory/internal/infrastructure/directory"
	"github.com/example/liquor-inventory/internal/infrastructure/store"
	"github.com/example/liquor-inventory/internal/metrics"
	"github.com/example/liquor-inventory/internal/projection"
	"github.com/example/liquor-inventory/internal/query"
	"github.com/example/liquor-inventory/internal/scanner"
)

const testSecret = "test-secret-key-for-router-tests-0123"

type stubScanner struct {
	result scanner.Result
	err    error
}

func (s *stubScanner) RunNow(ctx context.Context) (scanner.Result, error) {
	return s.result, s.err
}

type testServer struct {
	handler http.Handler
	jwt     *auth.JWTService
	scan    *stubScanner
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	readStore := store.NewReadStore()
	eventStore := store.NewEventStore(projection.NewProjector(readStore, nil))

	dir := directory.NewMemory()
	dir.SetProduct(7, 5)
	dir.SetWarehouse(3, 10)
	dir.SetWarehouse(4, 10)

	alertSvc := alert.NewService(alertstore.NewMemoryRepository(), nil)
	dispatcher := dispatch.NewDispatcher(nil, nil)
	dispatcher.Register(dispatch.NewAlertHandler(dir, alert.NewFacade(alertSvc), nil, time.Second, nil))

	inventorySvc := inventory.NewService(eventStore, dir, dir, dispatcher, nil)
	scan := &stubScanner{}
	handlers := NewHandlers(command.NewHandler(inventorySvc, alertSvc), query.NewHandler(readStore, alertSvc, nil), scan, nil)
	jwtService := auth.NewJWTService(testSecret, time.Hour)

	return &testServer{
		handler: NewRouter(RouterConfig{
			Handlers:   handlers,
			JWTService: jwtService,
			Metrics:    metrics.New(metrics.DefaultConfig()),
		}),
		jwt:  jwtService,
		scan: scan,
	}
}

func (s *testServer) token(t *testing.T, accountID int64, role string) string {
	t.Helper()
	token, _, err := s.jwt.GenerateAccessToken(accountID, "tester", role)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var createBody = map[string]any{
	"product_id":       7,
	"warehouse_id":     3,
	"quantity":         10,
	"best_before_date": "2027-03-01",
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/metrics", "", nil).Code)
}

func TestRouter_RequiresToken(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/v1/inventory", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_ViewerCannotWrite(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/inventory", srv.token(t, 10, auth.RoleViewer), createBody)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_CreateAndGetInventory(t *testing.T) {
	srv := newTestServer(t)
	operator := srv.token(t, 10, auth.RoleOperator)

	rec := srv.do(t, http.MethodPost, "/api/v1/inventory", operator, createBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 10, decode[inventory.Record](t, rec).Stock)

	rec = srv.do(t, http.MethodPost, "/api/v1/inventory", operator, createBody)
	assert.Equal(t, http.StatusConflict, rec.Code)

	viewer := srv.token(t, 10, auth.RoleViewer)
	rec = srv.do(t, http.MethodGet, "/api/v1/inventory/7/3", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, decode[query.InventoryReadModel](t, rec).Stock)

	rec = srv.do(t, http.MethodGet, "/api/v1/inventory/7/3?best_before_date=2027-03-01", viewer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do(t, http.MethodGet, "/api/v1/inventory/7/3?best_before_date=2027-03-02", viewer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = srv.do(t, http.MethodGet, "/api/v1/inventory/seven/3", viewer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/inventory?warehouse_id=3", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]query.InventoryReadModel](t, rec), 1)
}

func TestRouter_ValidationErrors(t *testing.T) {
	srv := newTestServer(t)
	operator := srv.token(t, 10, auth.RoleOperator)

	rec := srv.do(t, http.MethodPost, "/api/v1/inventory", operator, map[string]any{"product_id": 7})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Contains(t, resp.Fields, "warehouse_id")
	assert.Contains(t, resp.Fields, "quantity")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+operator)
	raw := httptest.NewRecorder()
	srv.handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestRouter_UnknownIDsAreNotFound(t *testing.T) {
	srv := newTestServer(t)
	operator := srv.token(t, 10, auth.RoleOperator)

	rec := srv.do(t, http.MethodPost, "/api/v1/inventory", operator,
		map[string]any{"product_id": 999, "warehouse_id": 3, "quantity": 10, "best_before_date": "2027-03-01"})
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/v1/inventory", operator, createBody).Code)
	rec = srv.do(t, http.MethodPost, "/api/v1/inventory/move", operator,
		map[string]any{"product_id": 7, "from_warehouse_id": 3, "to_warehouse_id": 424242, "quantity": 2})
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/api/v1/inventory/7/3", operator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, decode[query.InventoryReadModel](t, rec).Stock)
}

func TestRouter_LowStockRaisesAlert(t *testing.T) {
	srv := newTestServer(t)
	operator := srv.token(t, 10, auth.RoleOperator)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/v1/inventory", operator, createBody).Code)

	rec := srv.do(t, http.MethodPost, "/api/v1/inventory/reduce", operator,
		map[string]any{"product_id": 7, "warehouse_id": 3, "quantity": 6})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 4, decode[inventory.Record](t, rec).Stock)

	rec = srv.do(t, http.MethodPost, "/api/v1/inventory/reduce", operator,
		map[string]any{"product_id": 7, "warehouse_id": 3, "quantity": 5})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/alerts?state=active", operator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := decode[[]alert.Alert](t, rec)
	require.Len(t, alerts, 1)
	assert.Equal(t, "stock-low", alerts[0].Type)

	other := srv.token(t, 11, auth.RoleOperator)
	assert.Empty(t, decode[[]alert.Alert](t, srv.do(t, http.MethodGet, "/api/v1/alerts", other, nil)))
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodPost, "/api/v1/alerts/"+alerts[0].ID+"/read", other, nil).Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/alerts/"+alerts[0].ID+"/read", operator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, alert.StateRead, decode[alert.Alert](t, rec).State)

	rec = srv.do(t, http.MethodGet, "/api/v1/alerts?state=archived", operator, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_MoveUpdateDelete(t *testing.T) {
	srv := newTestServer(t)
	operator := srv.token(t, 10, auth.RoleOperator)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/v1/inventory", operator, createBody).Code)

	rec := srv.do(t, http.MethodPost, "/api/v1/inventory/move", operator,
		map[string]any{"product_id": 7, "from_warehouse_id": 3, "to_warehouse_id": 4, "quantity": 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodPut, "/api/v1/inventory/7/4/best-before-date", operator,
		map[string]any{"best_before_date": "2027-02-01"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusConflict, srv.do(t, http.MethodDelete, "/api/v1/inventory/7/4", operator, nil).Code)
	assert.Equal(t, http.StatusNoContent, srv.do(t, http.MethodDelete, "/api/v1/inventory/7/3", operator, nil).Code)
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/api/v1/inventory/7/3", operator, nil).Code)
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodDelete, "/api/v1/inventory/7/3", operator, nil).Code)
}

func TestRouter_RunScan(t *testing.T) {
	srv := newTestServer(t)
	operator := srv.token(t, 10, auth.RoleOperator)
	srv.scan.result = scanner.Result{Scanned: 3, Raised: 1}

	rec := srv.do(t, http.MethodPost, "/api/v1/inventory/scan", operator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[scanner.Result](t, rec).Raised)

	srv.scan.err = errors.New("read store down")
	assert.Equal(t, http.StatusInternalServerError, srv.do(t, http.MethodPost, "/api/v1/inventory/scan", operator, nil).Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&command.ValidationError{Fields: map[string]string{"quantity": "is required"}}, http.StatusBadRequest},
		{inventory.ErrInvalidQuantity, http.StatusBadRequest},
		{alert.ErrUnknownSeverity, http.StatusBadRequest},
		{inventory.ErrInventoryNotFound, http.StatusNotFound},
		{alert.ErrAlertNotFound, http.StatusNotFound},
		{inventory.ErrInsufficientStock, http.StatusConflict},
		{alert.ErrInvalidStateTransition, http.StatusConflict},
		{inventory.ErrConcurrentModification, http.StatusConflict},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

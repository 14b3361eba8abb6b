package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/invoicedesk/internal/clock"
	"github.com/smallbiznis/invoicedesk/internal/config"
	"github.com/smallbiznis/invoicedesk/internal/idempotency"
	invoicedomain "github.com/smallbiznis/invoicedesk/internal/invoice/domain"
	"github.com/smallbiznis/invoicedesk/internal/invoice/render"
	"github.com/smallbiznis/invoicedesk/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/invoicedesk/internal/invoice/service"
	"github.com/smallbiznis/invoicedesk/internal/migration"
	"github.com/smallbiznis/invoicedesk/internal/observability"
	paymentrepository "github.com/smallbiznis/invoicedesk/internal/payment/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type testServer struct {
	engine *gin.Engine
	clock  *clock.FakeClock
}

func newTestEngine(t *testing.T, svc invoicedomain.Service, clk clock.Clock, store idempotency.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		CORSAllowedOrigins: []string{"*"},
		Idempotency:        config.IdempotencyConfig{TTL: time.Hour},
	}
	engine := NewEngine(observability.Config{LogLevel: "info"}, nil, cfg)
	NewServer(ServerParams{
		Gin:         engine,
		Cfg:         cfg,
		Log:         zap.NewNop(),
		Clock:       clk,
		InvoiceSvc:  svc,
		Idempotency: store,
	})
	return engine
}

func newTestServer(t *testing.T) testServer {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	store, err := idempotency.NewBoltStore(filepath.Join(t.TempDir(), "keys.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clk := clock.NewFakeClock(testNow)
	svc := invoiceservice.New(invoiceservice.Params{
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Repo:        repository.Provide(),
		PaymentRepo: paymentrepository.Provide(),
		Renderer:    render.NewRenderer(),
	})

	return testServer{engine: newTestEngine(t, svc, clk, store), clock: clk}
}

func (ts testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	return doRequest(t, ts.engine, method, path, body, headers...)
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

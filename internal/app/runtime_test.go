package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/egannguyen/instaprint/internal/config"
	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/messaging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryRuntime(t *testing.T) *Runtime {
	t.Helper()
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.RetryStep = time.Millisecond

	r, err := NewRuntime(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func call(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func TestRuntime_MemoryModeServesDemoShop(t *testing.T) {
	r := newMemoryRuntime(t)
	assert.True(t, r.inProcess)

	router, sessions := r.Router()
	defer sessions.Close()

	ctx, cancel := context.WithCancel(context.Background())
	relayDone := make(chan error, 1)
	go func() { relayDone <- r.relay().Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-relayDone)
	}()

	rec := call(t, router, http.MethodPost, "/api/operator/sessions", map[string]string{"operator_id": DemoOwnerID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var opened struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opened))

	rec = call(t, router, http.MethodPost, "/api/orders", entity.PlaceOrder{
		CustomerID: DemoCustomerID,
		ShopID:     DemoShopID,
		FilePath:   DemoShopID + "/flyer.pdf",
		Spec:       entity.PrintSpec{PaperSize: entity.PaperA4, ColorMode: entity.ColorModeColor, Copies: 1, PageCount: 2},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The new order reaches the session through feed, relay and broker.
	require.Eventually(t, func() bool {
		rec := call(t, router, http.MethodGet, "/api/operator/sessions/"+opened.SessionID+"/orders", nil)
		var list struct {
			Orders []entity.Order `json:"orders"`
		}
		return rec.Code == http.StatusOK && json.Unmarshal(rec.Body.Bytes(), &list) == nil && len(list.Orders) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRuntime_OnCompletedPublishes(t *testing.T) {
	r := newMemoryRuntime(t)

	got := make(chan entity.OrderCompleted, 1)
	sub, err := r.subscriber.Subscribe(context.Background(), messaging.OrdersCompletedTopic, "test", func(_ context.Context, payload []byte) error {
		var e entity.OrderCompleted
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		got <- e
		return nil
	})
	require.NoError(t, err)
	defer sub.Close()

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r.syncConfig().OnCompleted(entity.Order{ID: "o-1", ShopID: DemoShopID, UpdatedAt: at})

	select {
	case e := <-got:
		assert.Equal(t, entity.OrderCompleted{OrderID: "o-1", ShopID: DemoShopID, CompletedAt: at}, e)
	case <-time.After(time.Second):
		t.Fatal("OrderCompleted not published")
	}
}

func TestRuntime_Watch(t *testing.T) {
	r := newMemoryRuntime(t)
	_, err := r.orders.Create(context.Background(), entity.Order{
		CustomerID: DemoCustomerID,
		ShopID:     DemoShopID,
		FilePath:   DemoShopID + "/poster.pdf",
		Spec:       entity.PrintSpec{PaperSize: entity.PaperA3, ColorMode: entity.ColorModeColor, Copies: 2, PageCount: 1},
		Price:      decimal.NewFromInt(40),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	var out bytes.Buffer
	require.NoError(t, r.Watch(ctx, bytes.NewReader(nil), &out, DemoOwnerID, "", entity.FilterAll))

	assert.Contains(t, out.String(), "Campus Print Corner")
	assert.Contains(t, out.String(), "state=ready")
	assert.Contains(t, out.String(), "2 x 1 A3 Color")
	assert.Contains(t, out.String(), "40.00")

	err = r.Watch(context.Background(), bytes.NewReader(nil), &out, "nobody", "", entity.FilterAll)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestRuntime_CommandsNeedInfrastructure(t *testing.T) {
	r := newMemoryRuntime(t)

	assert.ErrorContains(t, r.RunRelay(context.Background()), "KAFKA_BROKERS")

	_, err := OpenDB(context.Background(), r.cfg)
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestRuntime_DispatchDefaultsToLocalFunction(t *testing.T) {
	r := newMemoryRuntime(t)
	assert.Nil(t, r.newMailer(), "no Postmark token disables the mailer")
	assert.Nil(t, r.geocoder())
	assert.NotNil(t, r.syncDeps().Dispatcher)
}

func TestNewLogger(t *testing.T) {
	defer slog.SetDefault(slog.Default())
	logger := NewLogger(config.Config{ServiceID: "instaprint", LogLevel: "warn"})
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}

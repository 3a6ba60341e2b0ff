package console

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/shoporders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu        sync.Mutex
	status    shoporders.Status
	orders    []entity.Order
	completed []string
	refreshed int
	err       error
}

func (f *fakeSession) Status() shoporders.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeSession) Orders(filter entity.OrderFilter) []entity.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Order
	for _, o := range f.orders {
		switch {
		case filter == entity.FilterAll,
			filter == entity.FilterPending && o.Status == entity.StatusPending,
			filter == entity.FilterCompleted && o.Status == entity.StatusCompleted:
			out = append(out, o)
		}
	}
	return out
}

func (f *fakeSession) Refresh(context.Context, bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	return true, f.err
}

func (f *fakeSession) Retry() error { return f.err }

func (f *fakeSession) MarkCompleted(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.completed = append(f.completed, orderID)
	for i := range f.orders {
		if f.orders[i].ID == orderID {
			f.orders[i].Status = entity.StatusCompleted
		}
	}
	return nil
}

func newFakeSession() *fakeSession {
	shop := entity.Shop{ID: "shop-1", Name: "Campus Print Corner"}
	placed := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	return &fakeSession{
		status: shoporders.Status{State: shoporders.StateReady, Shop: &shop, Orders: 2},
		orders: []entity.Order{
			{
				ID: "order-aaaa-1111", CustomerName: "Mai Tran", Status: entity.StatusPending,
				PaymentStatus: entity.PaymentCompleted, Price: decimal.RequireFromString("40"), CreatedAt: placed,
				Spec: entity.PrintSpec{PaperSize: entity.PaperA3, ColorMode: entity.ColorModeColor, Copies: 2, PageCount: 1},
			},
			{
				ID: "order-bbbb-2222", CustomerName: "Linh Vo", Status: entity.StatusCompleted,
				PaymentStatus: entity.PaymentPending, Price: decimal.RequireFromString("3.5"), CreatedAt: placed,
				Spec: entity.PrintSpec{PaperSize: entity.PaperA4, ColorMode: entity.ColorModeBW, Copies: 1, PageCount: 7},
			},
		},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestModel_ViewShowsPendingOrders(t *testing.T) {
	m := New(context.Background(), newFakeSession(), entity.FilterPending)

	view := m.View()
	assert.Contains(t, view, "Campus Print Corner")
	assert.Contains(t, view, "state=")
	assert.Contains(t, view, "filter=pending")
	assert.Contains(t, view, "order-aa")
	assert.Contains(t, view, "2 x 1 A3 Color")
	assert.Contains(t, view, "40.00")
	assert.NotContains(t, view, "Linh Vo")
}

func TestModel_TabCyclesFilter(t *testing.T) {
	m := New(context.Background(), newFakeSession(), entity.FilterPending)

	m, _ = update(t, m, key("tab"))
	assert.Equal(t, entity.FilterCompleted, m.filter)
	assert.Contains(t, m.View(), "Linh Vo")
	assert.NotContains(t, m.View(), "Mai Tran")

	m, _ = update(t, m, key("f"))
	assert.Equal(t, entity.FilterAll, m.filter)
	assert.Len(t, m.orders, 2)

	m, _ = update(t, m, key("tab"))
	assert.Equal(t, entity.FilterPending, m.filter)
}

func TestModel_EnterCompletesSelectedOrder(t *testing.T) {
	session := newFakeSession()
	m := New(context.Background(), session, entity.FilterPending)

	m, cmd := update(t, m, key("enter"))
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, resultMsg{note: "completed order-aa"}, msg)
	assert.Equal(t, []string{"order-aaaa-1111"}, session.completed)

	m, _ = update(t, m, msg)
	assert.Empty(t, m.orders, "the completed order leaves the pending tab")
	assert.Contains(t, m.View(), "completed order-aa")

	_, cmd = update(t, m, key("enter"))
	assert.Nil(t, cmd, "nothing is selected on an empty tab")
}

func TestModel_ActionErrorsAreShown(t *testing.T) {
	session := newFakeSession()
	session.err = errors.New("shop temporarily unreachable")
	m := New(context.Background(), session, entity.FilterPending)

	m, cmd := update(t, m, key("r"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Equal(t, 1, session.refreshed)
	assert.Contains(t, m.View(), "shop temporarily unreachable")
}

func TestModel_TickResamplesSession(t *testing.T) {
	session := newFakeSession()
	m := New(context.Background(), session, entity.FilterAll)
	require.Len(t, m.orders, 2)

	session.mu.Lock()
	session.orders = session.orders[:1]
	session.status.State = shoporders.StateRetrying
	session.status.LastError = "connection reset"
	session.status.Retries, session.status.MaxRetries = 1, 3
	session.mu.Unlock()

	m, cmd := update(t, m, tickMsg(time.Now()))
	assert.NotNil(t, cmd, "a tick schedules the next one")
	assert.Len(t, m.orders, 1)
	assert.Contains(t, m.View(), "last error (retry 1/3): connection reset")
}

func TestModel_QuitKeys(t *testing.T) {
	m := New(context.Background(), newFakeSession(), entity.FilterPending)
	for _, k := range []string{"ctrl+c", "q"} {
		_, cmd := update(t, m, key(k))
		require.NotNil(t, cmd, k)
		assert.Equal(t, tea.Quit(), cmd(), k)
	}
}

func TestShops(t *testing.T) {
	out := Shops([]entity.Shop{
		{ID: "shop-1", Name: "Campus Print Corner", Address: "12 Le Loi"},
		{ID: "shop-22", Name: "Night Owl Copies", Address: "4 Hai Ba Trung"},
	})
	assert.Contains(t, out, "pass --shop")
	assert.Contains(t, out, "shop-1")
	assert.Contains(t, out, "Night Owl Copies")
	assert.Contains(t, out, "4 Hai Ba Trung")
}

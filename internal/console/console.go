// Package console is the terminal view of one operator session: a live
// order table that redraws as the session's state changes.
package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/shoporders"
)

// PollInterval is how often the model samples the session.
const PollInterval = 500 * time.Millisecond

// Session is the part of a synchronizer the console drives.
type Session interface {
	Status() shoporders.Status
	Orders(filter entity.OrderFilter) []entity.Order
	Refresh(ctx context.Context, force bool) (bool, error)
	Retry() error
	MarkCompleted(ctx context.Context, orderID string) error
}

var filters = []entity.OrderFilter{entity.FilterPending, entity.FilterCompleted, entity.FilterAll}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a8f98"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))
	stateStyle = map[shoporders.State]lipgloss.Style{
		shoporders.StateReady:    lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")),
		shoporders.StateLoading:  lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3")),
		shoporders.StateRetrying: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107")),
		shoporders.StateFailed:   errorStyle,
	}
)

type tickMsg time.Time

// resultMsg reports the outcome of a key action.
type resultMsg struct {
	note string
	err  error
}

// Model is the bubbletea model of the console.
type Model struct {
	ctx      context.Context
	session  Session
	filter   entity.OrderFilter
	interval time.Duration

	status shoporders.Status
	orders []entity.Order
	table  table.Model
	note   string
	err    error
}

// New creates a console for session showing filter.
func New(ctx context.Context, session Session, filter entity.OrderFilter) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Order", Width: 8},
			{Title: "Customer", Width: 18},
			{Title: "Job", Width: 22},
			{Title: "Price", Width: 9},
			{Title: "Status", Width: 10},
			{Title: "Payment", Width: 10},
			{Title: "Placed", Width: 19},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	m := Model{ctx: ctx, session: session, filter: filter, interval: PollInterval, table: t}
	m.sample()
	return m
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) sample() {
	m.status = m.session.Status()
	m.orders = m.session.Orders(m.filter)
	rows := make([]table.Row, 0, len(m.orders))
	for _, o := range m.orders {
		rows = append(rows, table.Row{
			shortID(o.ID),
			o.CustomerName,
			fmt.Sprintf("%d x %d %s %s", o.Spec.Copies, o.Spec.PageCount, o.Spec.PaperSize, o.Spec.ColorMode.Label()),
			o.Price.StringFixed(2),
			string(o.Status),
			string(o.PaymentStatus),
			o.CreatedAt.Format(time.DateTime),
		})
	}
	m.table.SetRows(rows)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.sample()
		return m, m.tick()

	case resultMsg:
		m.note, m.err = msg.note, msg.err
		m.sample()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "tab", "f":
			m.filter = nextFilter(m.filter)
			m.sample()
			return m, nil
		case "r":
			return m, m.refresh()
		case "R":
			return m, m.retry()
		case "enter", "c":
			if order, ok := m.selected(); ok {
				return m, m.complete(order.ID)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) selected() (entity.Order, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.orders) {
		return entity.Order{}, false
	}
	return m.orders[i], true
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		if _, err := m.session.Refresh(m.ctx, true); err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{note: "refreshed"}
	}
}

func (m Model) retry() tea.Cmd {
	return func() tea.Msg {
		if err := m.session.Retry(); err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{note: "reconnecting"}
	}
}

func (m Model) complete(orderID string) tea.Cmd {
	return func() tea.Msg {
		if err := m.session.MarkCompleted(m.ctx, orderID); err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{note: "completed " + shortID(orderID)}
	}
}

func (m Model) View() string {
	var b strings.Builder

	shop := "no shop"
	if m.status.Shop != nil {
		shop = m.status.Shop.Name
	}
	state := string(m.status.State)
	if style, ok := stateStyle[m.status.State]; ok {
		state = style.Render(state)
	}
	fmt.Fprintf(&b, "%s  state=%s  orders=%d  filter=%s\n", titleStyle.Render(shop), state, m.status.Orders, m.filter)
	if m.status.LastError != "" {
		b.WriteString(errorStyle.Render(fmt.Sprintf("last error (retry %d/%d): %s", m.status.Retries, m.status.MaxRetries, m.status.LastError)))
		b.WriteString("\n")
	}

	b.WriteString(m.table.View())
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	case m.note != "":
		b.WriteString(mutedStyle.Render(m.note))
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render("enter complete · tab filter · r refresh · R retry · q quit"))
	b.WriteString("\n")
	return b.String()
}

// Shops renders the choice offered when an operator owns several shops.
func Shops(shops []entity.Shop) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Several shops found, pass --shop with one of:"))
	b.WriteString("\n")
	width := 0
	for _, s := range shops {
		width = max(width, lipgloss.Width(s.ID))
	}
	idStyle := lipgloss.NewStyle().Width(width + 2).PaddingLeft(2)
	for _, s := range shops {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, idStyle.Render(s.ID), "  ", s.Name, "  ", mutedStyle.Render(s.Address)))
		b.WriteString("\n")
	}
	return b.String()
}

func nextFilter(f entity.OrderFilter) entity.OrderFilter {
	for i, candidate := range filters {
		if candidate == f {
			return filters[(i+1)%len(filters)]
		}
	}
	return filters[0]
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

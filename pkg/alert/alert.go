package alert

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/elonfeng/foodbuzz/internal/observability"
	"github.com/elonfeng/foodbuzz/pkg/trend"
)

// Notification is the data sent to alert destinations.
type Notification struct {
	Title       string        `json:"title"`
	Body        string        `json:"body"`
	LatestKey   string        `json:"latest_key"`
	PreviousKey string        `json:"previous_key"`
	Movers      []trend.Mover `json:"movers"`
}

// NewMoversNotification summarizes the top movers of a report. It returns nil
// when the report has nothing to announce.
func NewMoversNotification(report trend.Report, top int) *Notification {
	if !report.Enough || len(report.Movers) == 0 || top <= 0 {
		return nil
	}
	movers := report.Movers
	if len(movers) > top {
		movers = movers[:top]
	}
	return &Notification{
		Title:       fmt.Sprintf("Restaurant movers %s", report.LatestKey),
		Body:        fmt.Sprintf("Top %d score changes since %s", len(movers), report.PreviousKey),
		LatestKey:   report.LatestKey,
		PreviousKey: report.PreviousKey,
		Movers:      movers,
	}
}

// formatMover renders one mover line, e.g. "Taco Spot +5 (10 → 15)".
func formatMover(m trend.Mover) string {
	return fmt.Sprintf("%s %s (%s → %s)", m.Name, signed(m.Delta), num(m.ScoreTotalOld), num(m.ScoreTotalNew))
}

func num(f float64) string {
	if math.IsNaN(f) {
		return "n/a"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func signed(f float64) string {
	if math.IsNaN(f) {
		return "n/a"
	}
	if f >= 0 {
		return "+" + num(f)
	}
	return num(f)
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return m != nil && len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	if m == nil || n == nil {
		return nil
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			observability.AlertsSent.WithLabelValues(notifier.Name(), "error").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
			continue
		}
		observability.AlertsSent.WithLabelValues(notifier.Name(), "ok").Inc()
	}
	return errors.Join(errs...)
}

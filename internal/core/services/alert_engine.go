package services

import (
	"sort"
	"sync"
	"time"

	"rillscope/internal/core/domain"

	"github.com/google/uuid"
)

const (
	HighBandwidthThresholdKbps = 5000
	PoorQualityThreshold       = 2
	HighLatencyThresholdMs     = 300

	DefaultAlertDisplayLimit = 3
)

// AlertRule raises an alert of Kind while Condition holds.
type AlertRule struct {
	Kind      domain.AlertKind
	Message   string
	Condition func(s *domain.Snapshot) bool
}

// DefaultAlertRules returns the built-in threshold rules.
func DefaultAlertRules() []AlertRule {
	return []AlertRule{
		{
			Kind:    domain.AlertHighBandwidth,
			Message: "High Bandwidth Usage",
			Condition: func(s *domain.Snapshot) bool {
				return s.TotalBandwidth() > HighBandwidthThresholdKbps
			},
		},
		{
			Kind:    domain.AlertPoorQuality,
			Message: "Poor Connection Quality",
			Condition: func(s *domain.Snapshot) bool {
				// a missing track is unknown, not poor
				return (s.HasVideo() && s.VideoQuality() <= PoorQualityThreshold) ||
					(s.HasAudio() && s.AudioQuality() <= PoorQualityThreshold)
			},
		},
		{
			Kind:    domain.AlertHighLatency,
			Message: "High Latency Detected",
			Condition: func(s *domain.Snapshot) bool {
				return s.RTT() > HighLatencyThresholdMs
			},
		},
	}
}

// AlertDiff lists what one evaluation changed.
type AlertDiff struct {
	Raised  []domain.Alert
	Retired []domain.Alert
}

// Empty reports whether nothing was raised or retired.
func (d AlertDiff) Empty() bool {
	return len(d.Raised) == 0 && len(d.Retired) == 0
}

// AlertOption configures an AlertEngine.
type AlertOption func(*AlertEngine)

// WithAlertRules replaces the default rules.
func WithAlertRules(rules []AlertRule) AlertOption {
	return func(e *AlertEngine) { e.rules = rules }
}

// WithDisplayLimit caps ActiveAlerts. Non-positive values are ignored.
func WithDisplayLimit(n int) AlertOption {
	return func(e *AlertEngine) {
		if n > 0 {
			e.displayLimit = n
		}
	}
}

// WithAlertClock replaces time.Now for alert timestamps.
func WithAlertClock(now func() time.Time) AlertOption {
	return func(e *AlertEngine) { e.now = now }
}

// WithAlertIDGenerator replaces the uuid alert ids.
func WithAlertIDGenerator(gen func() string) AlertOption {
	return func(e *AlertEngine) { e.newID = gen }
}

type alertSlot struct {
	active *domain.Alert
	// set by a dismiss while the condition held; cleared once it goes false
	suppressed bool
	// creation order, breaks timestamp ties
	seq uint64
}

// AlertEngine keeps at most one active alert per rule kind.
type AlertEngine struct {
	mu           sync.Mutex
	rules        []AlertRule
	slots        map[domain.AlertKind]*alertSlot
	displayLimit int
	seq          uint64
	now          func() time.Time
	newID        func() string
}

// NewAlertEngine creates an engine with the default rules.
func NewAlertEngine(opts ...AlertOption) *AlertEngine {
	e := &AlertEngine{
		rules:        DefaultAlertRules(),
		displayLimit: DefaultAlertDisplayLimit,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.slots = make(map[domain.AlertKind]*alertSlot, len(e.rules))
	for _, r := range e.rules {
		e.slots[r.Kind] = &alertSlot{}
	}
	return e
}

// Evaluate applies every rule to s. A nil snapshot evaluates as all-zero.
func (e *AlertEngine) Evaluate(s *domain.Snapshot) AlertDiff {
	e.mu.Lock()
	defer e.mu.Unlock()

	var diff AlertDiff
	for _, rule := range e.rules {
		slot := e.slots[rule.Kind]
		if !rule.Condition(s) {
			if slot.active != nil {
				diff.Retired = append(diff.Retired, *slot.active)
				slot.active = nil
			}
			slot.suppressed = false
			continue
		}
		if slot.active != nil || slot.suppressed {
			continue
		}

		e.seq++
		slot.seq = e.seq
		slot.active = &domain.Alert{
			ID:        e.newID(),
			Kind:      rule.Kind,
			Message:   rule.Message,
			CreatedAt: e.now(),
		}
		diff.Raised = append(diff.Raised, *slot.active)
	}
	return diff
}

// Dismiss removes one active alert. Its rule stays silent until the
// condition is observed false.
func (e *AlertEngine) Dismiss(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, slot := range e.slots {
		if slot.active != nil && slot.active.ID == id {
			slot.active = nil
			slot.suppressed = true
			return nil
		}
	}
	return domain.ErrAlertNotFound
}

// ClearAll dismisses every active alert.
func (e *AlertEngine) ClearAll() []domain.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	var cleared []domain.Alert
	for _, slot := range e.slots {
		if slot.active != nil {
			cleared = append(cleared, *slot.active)
			slot.active = nil
			slot.suppressed = true
		}
	}
	return cleared
}

// All returns every tracked alert, newest first.
func (e *AlertEngine) All() []domain.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sortedLocked()
}

// ActiveAlerts returns the newest alerts up to the display limit.
func (e *AlertEngine) ActiveAlerts() []domain.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	all := e.sortedLocked()
	if len(all) > e.displayLimit {
		all = all[:e.displayLimit]
	}
	return all
}

// AlertCount returns the number of active alerts, uncapped.
func (e *AlertEngine) AlertCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, slot := range e.slots {
		if slot.active != nil {
			n++
		}
	}
	return n
}

func (e *AlertEngine) sortedLocked() []domain.Alert {
	type entry struct {
		alert domain.Alert
		seq   uint64
	}
	entries := make([]entry, 0, len(e.slots))
	for _, slot := range e.slots {
		if slot.active != nil {
			entries = append(entries, entry{*slot.active, slot.seq})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].alert.CreatedAt.Equal(entries[j].alert.CreatedAt) {
			return entries[i].alert.CreatedAt.After(entries[j].alert.CreatedAt)
		}
		return entries[i].seq > entries[j].seq
	})

	out := make([]domain.Alert, len(entries))
	for i, en := range entries {
		out[i] = en.alert
	}
	return out
}

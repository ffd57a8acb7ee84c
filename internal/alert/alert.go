package alert

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
)

// Kind is a closed enum of alert event categories.
type Kind uint16

const (
	KindUnknown Kind = iota
	KindKillSwitch
	KindDailyStop
	KindWeeklyStop
	KindDrawdown
	KindBreakerTrip
	KindRateLimitUtilization
	KindCycleBudget
)

func (k Kind) String() string {
	switch k {
	case KindKillSwitch:
		return "kill_switch"
	case KindDailyStop:
		return "daily_stop"
	case KindWeeklyStop:
		return "weekly_stop"
	case KindDrawdown:
		return "drawdown"
	case KindBreakerTrip:
		return "breaker_trip"
	case KindRateLimitUtilization:
		return "rate_limit_utilization"
	case KindCycleBudget:
		return "cycle_budget"
	default:
		return "unknown"
	}
}

// Event carries enough context to action an alert without re-deriving
// state: current value, threshold, affected symbol when applicable.
type Event struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"-"`
	KindName  string          `json:"kind"`
	Symbol    string          `json:"symbol,omitempty"`
	Value     decimal.Decimal `json:"value"`
	Threshold decimal.Decimal `json:"threshold"`
	Message   string          `json:"message"`
	At        time.Time       `json:"at"`
}

// Sink receives alert events. Implementations must not block.
type Sink interface {
	Notify(Event)
}

// Notifier fans alert events out to registered sinks. A log sink is
// always present so no alert is ever silently lost.
type Notifier struct {
	mu    sync.Mutex
	sinks []Sink
}

// NewNotifier creates a notifier with the log sink installed.
func NewNotifier(sinks ...Sink) *Notifier {
	all := append([]Sink{logSink{}}, sinks...)
	return &Notifier{sinks: all}
}

// Fire publishes an event to every sink, filling in ID and timestamp.
func (n *Notifier) Fire(e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	e.KindName = e.Kind.String()
	n.mu.Lock()
	sinks := make([]Sink, len(n.sinks))
	copy(sinks, n.sinks)
	n.mu.Unlock()
	for _, sink := range sinks {
		sink.Notify(e)
	}
	return e
}

// Register adds a sink.
func (n *Notifier) Register(s Sink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sinks = append(n.sinks, s)
}

type logSink struct{}

func (logSink) Notify(e Event) {
	logs.Warnf("ALERT %s: %s value=%s threshold=%s symbol=%s id=%s",
		e.Kind, e.Message, e.Value.String(), e.Threshold.String(), e.Symbol, e.ID)
}

// Recorder is a test sink capturing events.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns captured events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// CountKind returns how many captured events have the given kind.
func (r *Recorder) CountKind(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, e := range r.events {
		if e.Kind == k {
			count++
		}
	}
	return count
}

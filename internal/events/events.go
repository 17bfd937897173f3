// Package events provides the process-wide publish/subscribe hub used by
// featsync components to surface sync progress to logging and metrics
// consumers.
package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/klauern/featsync/internal/logging"
)

// Standard event names emitted during a sync run.
const (
	// ConfigValidated fires after configuration validation completes.
	ConfigValidated = "config.validated"
	// ConfigDemoCredentials fires when missing credentials are substituted
	// with demo values outside a production context.
	ConfigDemoCredentials = "config.demo_credentials"

	// StagingCreated fires after the staging directory is recreated.
	StagingCreated = "staging.created"
	// StagingCleaned fires after the staging directory is removed.
	StagingCleaned = "staging.cleaned"
	// DownloadCompleted fires after the remote snapshot lands in staging.
	DownloadCompleted = "download.completed"
	// DownloadFailed fires when the remote fetch fails.
	DownloadFailed = "download.failed"

	// ChangesDetected fires with the computed change set.
	ChangesDetected = "changes.detected"

	// ValidationProgress fires after each batch of validated files.
	ValidationProgress = "validation.progress"
	// ValidationCompleted fires with the aggregated validation summary.
	ValidationCompleted = "validation.completed"

	// ConflictResolved fires when a modification auto-resolves.
	ConflictResolved = "conflict.resolved"
	// ConflictManual fires when a modification needs manual resolution.
	ConflictManual = "conflict.manual"

	// UserChoice fires after each interactive resolution choice.
	UserChoice = "user.choice"

	// PhaseStarted, PhaseCompleted, and PhaseFailed bracket orchestrator phases.
	PhaseStarted   = "phase.started"
	PhaseCompleted = "phase.completed"
	PhaseFailed    = "phase.failed"

	// SyncStarted and SyncFinished bracket a whole orchestrator run.
	SyncStarted  = "sync.started"
	SyncFinished = "sync.finished"

	// CacheHit and CacheMiss report cache lookups.
	CacheHit  = "cache.hit"
	CacheMiss = "cache.miss"
)

// DefaultHistorySize is the default bound on retained event history.
const DefaultHistorySize = 1000

// Event is one emitted envelope.
type Event struct {
	// ID is a unique identifier for this event.
	ID string
	// Name is the event name.
	Name string
	// Payload is the event-specific data.
	Payload any
	// Timestamp records when the event was emitted.
	Timestamp time.Time
}

// Listener receives events for a subscribed name.
type Listener func(Event)

// Subscription identifies one registered listener so it can be removed.
type Subscription struct {
	name string
	id   uint64
}

type registration struct {
	id       uint64
	fn       Listener
	once     bool
	consumed bool
}

// Bus is a synchronous publish/subscribe hub with bounded event history.
// The zero value is not usable; construct with New.
type Bus struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[string][]*registration
	history   []Event
	maxHist   int
}

// New creates a Bus retaining at most maxHistory events. A maxHistory of
// zero or below uses DefaultHistorySize.
func New(maxHistory int) *Bus {
	if maxHistory <= 0 {
		maxHistory = DefaultHistorySize
	}
	return &Bus{
		listeners: make(map[string][]*registration),
		maxHist:   maxHistory,
	}
}

// On registers a listener for the given event name. Listeners are invoked
// synchronously, in registration order.
func (b *Bus) On(name string, fn Listener) Subscription {
	return b.register(name, fn, false)
}

// Once registers a listener that is removed after its first invocation.
func (b *Bus) Once(name string, fn Listener) Subscription {
	return b.register(name, fn, true)
}

func (b *Bus) register(name string, fn Listener, once bool) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	reg := &registration{id: b.nextID, fn: fn, once: once}
	b.listeners[name] = append(b.listeners[name], reg)
	return Subscription{name: name, id: reg.id}
}

// Off removes a previously registered listener. Removing an unknown
// subscription is a no-op.
func (b *Bus) Off(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := b.listeners[sub.name]
	for i, reg := range regs {
		if reg.id == sub.id {
			b.listeners[sub.name] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// Emit stamps an envelope, appends it to history (dropping the oldest entry
// when over capacity), then invokes every listener registered for name at
// emit time. The listener list is snapshotted before dispatch, so listeners
// added or removed during emission do not affect the current dispatch. A
// panicking listener is recovered and logged; remaining listeners still run
// and the panic never reaches the caller.
func (b *Bus) Emit(name string, payload any) Event {
	ev := Event{
		ID:        uuid.NewString(),
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.Lock()
	b.history = append(b.history, ev)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}
	regs := b.listeners[name]
	snapshot := make([]*registration, 0, len(regs))
	for _, reg := range regs {
		if reg.once {
			if reg.consumed {
				continue
			}
			reg.consumed = true
		}
		snapshot = append(snapshot, reg)
	}
	// Drop consumed once-listeners before releasing the lock.
	if anyConsumed(regs) {
		kept := make([]*registration, 0, len(regs))
		for _, reg := range regs {
			if !reg.consumed {
				kept = append(kept, reg)
			}
		}
		b.listeners[name] = kept
	}
	b.mu.Unlock()

	for _, reg := range snapshot {
		b.dispatch(reg.fn, ev)
	}

	return ev
}

func anyConsumed(regs []*registration) bool {
	for _, reg := range regs {
		if reg.consumed {
			return true
		}
	}
	return false
}

// dispatch invokes one listener, containing any panic.
func (b *Bus) dispatch(fn Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("event listener panicked",
				logging.Operation("emit"),
				logging.Err(fmt.Errorf("listener for %q: %v", ev.Name, r)),
			)
		}
	}()
	fn(ev)
}

// History returns retained events in emission order. If name is non-empty,
// only events with that name are returned. A positive limit returns at most
// the last limit matching events.
func (b *Bus) History(name string, limit int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Event
	for _, ev := range b.history {
		if name == "" || ev.Name == name {
			out = append(out, ev)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// ListenerCount returns the number of listeners registered for name.
func (b *Bus) ListenerCount(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[name])
}

package displayclient

import (
	"log"
	"sync"
	"time"

	"github.com/DAVIDafergan/liveraise/internal/models"
)

// Trigger is one celebratory notification with a bounded on-screen lifetime
type Trigger struct {
	Donation  models.Donation
	FiredAt   time.Time
	ExpiresAt time.Time
}

// Dispatcher turns "new donation" decisions into at-most-one trigger per
// donation. Concurrent triggers stack instead of overwriting each other,
// since donations can arrive faster than the display duration. The audio
// hook runs on its own goroutine: an autoplay failure can never block or
// delay the visual trigger.
type Dispatcher struct {
	mu       sync.Mutex
	lifetime time.Duration
	maxQueue int
	active   []Trigger
	fired    map[string]struct{}

	onVisual func(Trigger)
	onAudio  func(Trigger) error

	now func() time.Time
}

func NewDispatcher(lifetime time.Duration, maxQueue int) *Dispatcher {
	if lifetime <= 0 {
		lifetime = 5 * time.Second
	}
	if maxQueue <= 0 {
		maxQueue = 64
	}
	return &Dispatcher{
		lifetime: lifetime,
		maxQueue: maxQueue,
		fired:    make(map[string]struct{}),
		now:      time.Now,
	}
}

// OnVisual registers the visual trigger callback, invoked synchronously
func (d *Dispatcher) OnVisual(fn func(Trigger)) { d.onVisual = fn }

// OnAudio registers the sound cue callback, invoked on its own goroutine
func (d *Dispatcher) OnAudio(fn func(Trigger) error) { d.onAudio = fn }

// Dispatch fires one trigger per donation that has not fired before and
// returns how many triggers were emitted.
func (d *Dispatcher) Dispatch(donations []models.Donation) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.pruneLocked(now)

	emitted := 0
	for _, donation := range donations {
		if _, dup := d.fired[donation.ID]; dup {
			continue
		}
		d.fired[donation.ID] = struct{}{}

		trigger := Trigger{
			Donation:  donation,
			FiredAt:   now,
			ExpiresAt: now.Add(d.lifetime),
		}

		// Stack, bounded: drop the oldest rather than the newest
		d.active = append(d.active, trigger)
		if len(d.active) > d.maxQueue {
			d.active = d.active[len(d.active)-d.maxQueue:]
		}
		emitted++

		if d.onVisual != nil {
			d.onVisual(trigger)
		}
		if d.onAudio != nil {
			go func(t Trigger) {
				if err := d.onAudio(t); err != nil {
					log.Printf("[DISPATCH] Audio cue failed for donation %s: %v", t.Donation.ID, err)
				}
			}(trigger)
		}
	}

	return emitted
}

// Active returns the triggers still within their on-screen lifetime
func (d *Dispatcher) Active() []Trigger {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pruneLocked(d.now())
	out := make([]Trigger, len(d.active))
	copy(out, d.active)
	return out
}

// pruneLocked retires expired triggers. The fired set keeps the ids of
// retired triggers: a donation never notifies twice even if it reappears
// in later snapshots.
func (d *Dispatcher) pruneLocked(now time.Time) {
	kept := d.active[:0]
	for _, t := range d.active {
		if t.ExpiresAt.After(now) {
			kept = append(kept, t)
		}
	}
	d.active = kept
}

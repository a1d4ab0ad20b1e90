package displayclient

import (
	"context"
	"log"
	"time"

	"github.com/DAVIDafergan/liveraise/internal/models"
)

// snapshotSource lets tests drive the poll loop without a server
type snapshotSource interface {
	FetchSnapshot(ctx context.Context, slug string) (*models.Snapshot, error)
}

// Poller runs one display client's poll loop: fetch a snapshot, diff it
// against the cursor, dispatch triggers, wait, repeat. Polls never overlap:
// the next poll is scheduled only after the previous round trip finishes or
// times out, so a slow network cannot pile up concurrent requests.
type Poller struct {
	source     snapshotSource
	slug       string
	interval   time.Duration
	timeout    time.Duration
	tracker    *SyncTracker
	dispatcher *Dispatcher

	// OnSnapshot is called after each successful poll with the snapshot
	// and the genuinely new donations (possibly empty).
	OnSnapshot func(snapshot *models.Snapshot, fresh []models.Donation)
}

func NewPoller(source snapshotSource, slug string, interval, timeout time.Duration, dispatcher *Dispatcher) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if timeout <= 0 {
		timeout = interval * 2
	}
	return &Poller{
		source:     source,
		slug:       slug,
		interval:   interval,
		timeout:    timeout,
		tracker:    NewSyncTracker(),
		dispatcher: dispatcher,
	}
}

// Tracker exposes the poller's cursor state
func (p *Poller) Tracker() *SyncTracker {
	return p.tracker
}

// Run polls until ctx is cancelled. Cancellation stops the timer
// immediately; an in-flight response is discarded rather than applied to a
// cursor that no longer matters.
func (p *Poller) Run(ctx context.Context) {
	for {
		p.pollOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	snapshot, err := p.source.FetchSnapshot(reqCtx, p.slug)
	if err != nil {
		// A failed poll is "no update this cycle": the cursor is kept so
		// the next successful poll neither re-notifies nor misses events.
		if ctx.Err() == nil {
			log.Printf("[POLL] Snapshot fetch failed for %s: %v", p.slug, err)
		}
		return
	}

	if ctx.Err() != nil {
		return
	}

	fresh := p.tracker.Diff(snapshot.Donations)
	if p.dispatcher != nil && len(fresh) > 0 {
		p.dispatcher.Dispatch(fresh)
	}

	if p.OnSnapshot != nil {
		p.OnSnapshot(snapshot, fresh)
	}
}

// Package displayclient implements the polling side of the live screen:
// fetching campaign snapshots, deciding which donations are genuinely new,
// and managing celebratory triggers.
package displayclient

import (
	"sync"

	"github.com/DAVIDafergan/liveraise/internal/models"
)

// SyncTracker holds one display client's cursor over the donation stream.
//
// Newness is decided purely by event identity: every donation carries a
// strictly increasing insertion sequence, and a donation is new exactly when
// its sequence is above the highest sequence this client has ever observed.
// Total-amount or list-length comparisons are deliberately not used: an
// amended amount, a raised manual starting amount, or a delete arriving in
// the same window as an insert would all fool them.
type SyncTracker struct {
	mu          sync.Mutex
	initialized bool
	cursor      int64
}

func NewSyncTracker() *SyncTracker {
	return &SyncTracker{}
}

// Diff consumes a snapshot's donation list (newest first, as served) and
// returns the genuinely new donations in creation order. The first call
// only establishes the baseline: pre-existing donations never notify.
// The cursor always advances to the newest marker seen and never regresses,
// so a deleted newest donation cannot cause re-notification later.
func (t *SyncTracker) Diff(donations []models.Donation) []models.Donation {
	t.mu.Lock()
	defer t.mu.Unlock()

	maxSeq := t.cursor
	var fresh []models.Donation

	// Snapshot is newest-first; walk backwards so fresh comes out in
	// creation order.
	for i := len(donations) - 1; i >= 0; i-- {
		d := donations[i]
		if d.Seq > maxSeq {
			maxSeq = d.Seq
		}
		if t.initialized && d.Seq > t.cursor {
			fresh = append(fresh, d)
		}
	}

	t.cursor = maxSeq
	t.initialized = true
	return fresh
}

// Cursor returns the highest insertion sequence observed so far
func (t *SyncTracker) Cursor() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor
}

// Synced reports whether the baseline snapshot has been received
func (t *SyncTracker) Synced() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initialized
}

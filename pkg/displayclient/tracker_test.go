package displayclient

import (
	"testing"

	"github.com/DAVIDafergan/liveraise/internal/models"
	"github.com/stretchr/testify/assert"
)

// snapshotList builds a newest-first donation list from seqs given in
// creation order, the way the server serves them.
func snapshotList(seqs ...int64) []models.Donation {
	out := make([]models.Donation, 0, len(seqs))
	for i := len(seqs) - 1; i >= 0; i-- {
		seq := seqs[i]
		out = append(out, models.Donation{
			ID:     string(rune('a' + seq)),
			Seq:    seq,
			Amount: seq * 100,
		})
	}
	return out
}

func TestSyncTracker_BaselineNeverNotifies(t *testing.T) {
	tracker := NewSyncTracker()
	assert.False(t, tracker.Synced())

	fresh := tracker.Diff(snapshotList(1, 2, 3))
	assert.Empty(t, fresh, "pre-existing donations must not notify on first sync")
	assert.True(t, tracker.Synced())
	assert.Equal(t, int64(3), tracker.Cursor())
}

func TestSyncTracker_NewDonationsInCreationOrder(t *testing.T) {
	tracker := NewSyncTracker()
	tracker.Diff(snapshotList(1, 2))

	// Two donations landed between polls
	fresh := tracker.Diff(snapshotList(1, 2, 3, 4))
	assert.Len(t, fresh, 2)
	assert.Equal(t, int64(3), fresh[0].Seq)
	assert.Equal(t, int64(4), fresh[1].Seq)
	assert.Equal(t, int64(4), tracker.Cursor())
}

func TestSyncTracker_UnchangedSnapshotIsQuiet(t *testing.T) {
	tracker := NewSyncTracker()
	tracker.Diff(snapshotList(1, 2, 3))

	fresh := tracker.Diff(snapshotList(1, 2, 3))
	assert.Empty(t, fresh)
	assert.Equal(t, int64(3), tracker.Cursor())
}

func TestSyncTracker_DeleteDoesNotNotify(t *testing.T) {
	tracker := NewSyncTracker()
	tracker.Diff(snapshotList(1, 2, 3))

	// Donation 2 was deleted by an operator
	fresh := tracker.Diff(snapshotList(1, 3))
	assert.Empty(t, fresh)
	assert.Equal(t, int64(3), tracker.Cursor())
}

func TestSyncTracker_DeleteNewestDoesNotRegressCursor(t *testing.T) {
	tracker := NewSyncTracker()
	tracker.Diff(snapshotList(1, 2, 3))

	// The newest donation was deleted; the cursor must hold at 3 so 3
	// can never re-notify if the snapshot churns.
	fresh := tracker.Diff(snapshotList(1, 2))
	assert.Empty(t, fresh)
	assert.Equal(t, int64(3), tracker.Cursor())

	fresh = tracker.Diff(snapshotList(1, 2, 4))
	assert.Len(t, fresh, 1)
	assert.Equal(t, int64(4), fresh[0].Seq)
}

func TestSyncTracker_DeleteAndInsertSameWindow(t *testing.T) {
	tracker := NewSyncTracker()
	tracker.Diff(snapshotList(1, 2, 3))

	// Donation 1 deleted, donation 4 inserted, list length unchanged.
	// A length-based heuristic would miss this; identity does not.
	fresh := tracker.Diff(snapshotList(2, 3, 4))
	assert.Len(t, fresh, 1)
	assert.Equal(t, int64(4), fresh[0].Seq)
}

func TestSyncTracker_AmendDoesNotNotify(t *testing.T) {
	tracker := NewSyncTracker()
	tracker.Diff(snapshotList(1, 2, 3))

	// Donation 3's amount was amended upward; the total rises but no new
	// donation exists, so nothing fires.
	amended := snapshotList(1, 2, 3)
	amended[0].Amount = 9999
	fresh := tracker.Diff(amended)
	assert.Empty(t, fresh)
}

func TestSyncTracker_TruncatedWindowStillDiffs(t *testing.T) {
	tracker := NewSyncTracker()
	tracker.Diff(snapshotList(1, 2, 3, 4, 5))

	// The display window dropped old donations; only the tail is served.
	fresh := tracker.Diff(snapshotList(4, 5, 6, 7))
	assert.Len(t, fresh, 2)
	assert.Equal(t, int64(6), fresh[0].Seq)
	assert.Equal(t, int64(7), fresh[1].Seq)
	assert.Equal(t, int64(7), tracker.Cursor())
}

func TestSyncTracker_EmptySnapshot(t *testing.T) {
	tracker := NewSyncTracker()

	fresh := tracker.Diff(nil)
	assert.Empty(t, fresh)
	assert.True(t, tracker.Synced())

	// First real donation after an empty baseline fires
	fresh = tracker.Diff(snapshotList(1))
	assert.Len(t, fresh, 1)
}

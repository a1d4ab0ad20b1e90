package displayclient

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DAVIDafergan/liveraise/internal/models"
	"github.com/stretchr/testify/assert"
)

func testDonation(id string, seq int64) models.Donation {
	return models.Donation{ID: id, Seq: seq, DonorName: "Donor", Amount: 100}
}

func TestDispatcher_AtMostOncePerDonation(t *testing.T) {
	d := NewDispatcher(5*time.Second, 64)

	var visual []Trigger
	d.OnVisual(func(tr Trigger) { visual = append(visual, tr) })

	emitted := d.Dispatch([]models.Donation{testDonation("d1", 1)})
	assert.Equal(t, 1, emitted)

	// The same donation offered again, in this batch and a later one
	emitted = d.Dispatch([]models.Donation{testDonation("d1", 1), testDonation("d1", 1)})
	assert.Equal(t, 0, emitted)
	emitted = d.Dispatch([]models.Donation{testDonation("d1", 1), testDonation("d2", 2)})
	assert.Equal(t, 1, emitted)

	assert.Len(t, visual, 2)
	assert.Equal(t, "d1", visual[0].Donation.ID)
	assert.Equal(t, "d2", visual[1].Donation.ID)
}

func TestDispatcher_TriggersStack(t *testing.T) {
	d := NewDispatcher(5*time.Second, 64)

	d.Dispatch([]models.Donation{
		testDonation("d1", 1),
		testDonation("d2", 2),
		testDonation("d3", 3),
	})

	active := d.Active()
	assert.Len(t, active, 3, "concurrent triggers stack instead of replacing each other")
}

func TestDispatcher_QueueIsBounded(t *testing.T) {
	d := NewDispatcher(5*time.Second, 2)

	d.Dispatch([]models.Donation{
		testDonation("d1", 1),
		testDonation("d2", 2),
		testDonation("d3", 3),
	})

	active := d.Active()
	assert.Len(t, active, 2)
	// Oldest dropped, newest kept
	assert.Equal(t, "d2", active[0].Donation.ID)
	assert.Equal(t, "d3", active[1].Donation.ID)
}

func TestDispatcher_TriggersExpire(t *testing.T) {
	d := NewDispatcher(5*time.Second, 64)

	current := time.Unix(1000, 0)
	d.now = func() time.Time { return current }

	d.Dispatch([]models.Donation{testDonation("d1", 1)})
	assert.Len(t, d.Active(), 1)

	current = current.Add(6 * time.Second)
	assert.Empty(t, d.Active())

	// An expired trigger's donation still never fires again
	emitted := d.Dispatch([]models.Donation{testDonation("d1", 1)})
	assert.Equal(t, 0, emitted)
}

func TestDispatcher_AudioFailureDoesNotBlockVisual(t *testing.T) {
	d := NewDispatcher(5*time.Second, 64)

	var visualFired bool
	d.OnVisual(func(Trigger) { visualFired = true })

	var wg sync.WaitGroup
	wg.Add(1)
	d.OnAudio(func(Trigger) error {
		defer wg.Done()
		return errors.New("autoplay blocked")
	})

	emitted := d.Dispatch([]models.Donation{testDonation("d1", 1)})
	assert.Equal(t, 1, emitted)
	assert.True(t, visualFired, "visual trigger fires regardless of the audio cue")

	wg.Wait()
	assert.Len(t, d.Active(), 1)
}

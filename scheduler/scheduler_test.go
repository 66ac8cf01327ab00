package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/uplo-tech/chunkvault/engine"
)

type fakeCheckpointer struct {
	calls int32
	label string
}

func (f *fakeCheckpointer) CreateCheckpoint(label, notes string, retention int) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.label = label
	return "cp_" + label + "_fake.zip", nil
}

// TestAutoCheckpointerFiresOnSchedule tests that a scheduler configured
// with a cron expression that fires every second calls CreateCheckpoint
// at least once shortly after Start.
func TestAutoCheckpointerFiresOnSchedule(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}
	t.Parallel()

	fake := &fakeCheckpointer{}
	a, err := New(fake, engine.AutoCheckpointConfig{
		Schedule: "@every 1s",
		Label:    "auto",
		Retention: 5,
	})
	if err != nil {
		t.Fatal(err)
	}

	a.Start()
	defer a.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&fake.calls) > 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	if atomic.LoadInt32(&fake.calls) == 0 {
		t.Fatal("expected at least one automatic checkpoint to have fired")
	}
	if fake.label != "auto" {
		t.Fatalf("expected label 'auto', got %q", fake.label)
	}

	name, err := a.LastResult()
	if err != nil {
		t.Fatal(err)
	}
	if name == "" {
		t.Fatal("expected a non-empty last result filename")
	}
}

// TestNewRejectsInvalidSchedule tests that New validates the cron
// expression eagerly rather than discovering it is malformed at the first
// missed firing.
func TestNewRejectsInvalidSchedule(t *testing.T) {
	t.Parallel()
	fake := &fakeCheckpointer{}
	_, err := New(fake, engine.AutoCheckpointConfig{Schedule: "not a cron expression"})
	if err == nil {
		t.Fatal("expected an error constructing an AutoCheckpointer with an invalid schedule")
	}
}

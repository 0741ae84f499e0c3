package hashrate

import (
	"testing"
	"time"
)

func TestReportAccumulatesIntoSnapshot(t *testing.T) {
	a := New(0, time.Second)
	a.Report("chan-1", 100)
	a.Report("chan-2", 50)

	snap := a.Snapshot()
	if snap.TotalHashesPerSecond != 150 {
		t.Errorf("TotalHashesPerSecond = %v, want 150", snap.TotalHashesPerSecond)
	}
	if snap.ActiveChannels != 2 {
		t.Errorf("ActiveChannels = %d, want 2", snap.ActiveChannels)
	}
}

func TestReportFlagsOverspeed(t *testing.T) {
	a := New(1000, time.Second)
	overspeed := a.Report("chan-1", 5000)
	if !overspeed {
		t.Error("Report() = false for a rate above the ceiling, want true")
	}

	snap := a.Snapshot()
	if len(snap.OverspeedChannels) != 1 || snap.OverspeedChannels[0] != "chan-1" {
		t.Errorf("OverspeedChannels = %v, want [chan-1]", snap.OverspeedChannels)
	}
}

func TestReportWithinCeilingIsNotOverspeed(t *testing.T) {
	a := New(1000, time.Second)
	if a.Report("chan-1", 500) {
		t.Error("Report() = true for a rate within the ceiling, want false")
	}
}

func TestSnapshotPrunesStaleEntries(t *testing.T) {
	a := New(0, time.Second)
	a.mu.Lock()
	a.entries["chan-1"] = &entry{rate: 100, updatedAt: time.Now().Add(-staleAfter - time.Second)}
	a.mu.Unlock()

	snap := a.Snapshot()
	if snap.ActiveChannels != 0 {
		t.Errorf("ActiveChannels = %d after pruning, want 0", snap.ActiveChannels)
	}
	if snap.TotalHashesPerSecond != 0 {
		t.Errorf("TotalHashesPerSecond = %v after pruning, want 0", snap.TotalHashesPerSecond)
	}
}

func TestRemoveDropsEntryImmediately(t *testing.T) {
	a := New(0, time.Second)
	a.Report("chan-1", 100)
	a.Remove("chan-1")

	if a.Snapshot().ActiveChannels != 0 {
		t.Error("Remove did not drop the entry")
	}
}

func TestRatesReturnsPerChannelValues(t *testing.T) {
	a := New(0, time.Second)
	a.Report("chan-1", 100)
	a.Report("chan-2", 50)

	rates := a.Rates()
	if rates["chan-1"] != 100 || rates["chan-2"] != 50 {
		t.Errorf("Rates() = %v, want chan-1=100 chan-2=50", rates)
	}
}

func TestStartInvokesCallbackPeriodically(t *testing.T) {
	a := New(0, 10*time.Millisecond)
	a.Report("chan-1", 42)

	calls := make(chan Snapshot, 4)
	a.Start(func(s Snapshot) { calls <- s })
	defer a.Stop()

	select {
	case s := <-calls:
		if s.TotalHashesPerSecond != 42 {
			t.Errorf("TotalHashesPerSecond = %v, want 42", s.TotalHashesPerSecond)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a tick")
	}
}

package srtp

import "testing"

func TestReplayWindowFreshSeqAlwaysProceeds(t *testing.T) {
	var w ReplayWindow
	if !w.CanProceed(1000) {
		t.Fatal("first-ever sequence must be allowed")
	}
	w.Set(1000)
	if !w.CanProceed(1001) {
		t.Fatal("a sequence ahead of the high-water mark must be allowed")
	}
}

func TestReplayWindowRejectsDuplicate(t *testing.T) {
	var w ReplayWindow
	w.Set(1000)
	if w.CanProceed(1000) {
		t.Fatal("a duplicate of the high-water mark must be rejected")
	}
}

func TestReplayWindowRejectsTooOld(t *testing.T) {
	var w ReplayWindow
	w.Set(5000)
	if w.CanProceed(5000 - replayWindowBits) {
		t.Fatal("a sequence exactly window-size below high water must be rejected")
	}
	if w.CanProceed(0) {
		t.Fatal("a sequence far below the window must be rejected")
	}
}

func TestReplayWindowAllowsReorderWithinWindow(t *testing.T) {
	var w ReplayWindow
	w.Set(5000)
	if !w.CanProceed(4990) {
		t.Fatal("a not-yet-seen sequence within the window must be allowed")
	}
	w.Set(4990)
	if w.CanProceed(4990) {
		t.Fatal("replaying an accepted in-window sequence must be rejected")
	}
}

func TestReplayWindowSlidesForward(t *testing.T) {
	var w ReplayWindow
	w.Set(10000)
	w.Set(10000 + replayWindowBits*2)
	// The old high-water mark is now far outside the window.
	if w.CanProceed(10000) {
		t.Fatal("a sequence far behind the new high water must be rejected after sliding")
	}
	// But a fresh sequence just behind the new high water is fine.
	if !w.CanProceed(10000 + replayWindowBits*2 - 1) {
		t.Fatal("a sequence just below the new high water must be allowed")
	}
}

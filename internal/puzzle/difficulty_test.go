package puzzle

import "testing"

func TestDifficultyStepWithinWindow(t *testing.T) {
	cases := []struct {
		t, tMin, tMax float64
	}{
		{t: 10, tMin: 8, tMax: 12},
		{t: 8, tMin: 8, tMax: 12}, // lower boundary is inside the window
		{t: 12, tMin: 8, tMax: 12}, // upper boundary is inside the window
	}
	for _, c := range cases {
		if got := difficultyStep(c.t, c.tMin, c.tMax); got != 0 {
			t.Errorf("difficultyStep(%v, %v, %v) = %d, want 0", c.t, c.tMin, c.tMax, got)
		}
	}
}

func TestDifficultyStepFasterThanTarget(t *testing.T) {
	// mid = 10; T = 2.5 -> log2(10/2.5) = 2
	got := difficultyStep(2.5, 8, 12)
	if got != 2 {
		t.Errorf("difficultyStep(2.5, 8, 12) = %d, want 2", got)
	}
}

func TestDifficultyStepSlowerThanTarget(t *testing.T) {
	// mid = 10; T = 40 -> log2(10/40) = -2
	got := difficultyStep(40, 8, 12)
	if got != -2 {
		t.Errorf("difficultyStep(40, 8, 12) = %d, want -2", got)
	}
}

func TestDifficultyStepClampsToMaxStep(t *testing.T) {
	got := difficultyStep(0.001, 8, 12)
	if got != maxStep {
		t.Errorf("difficultyStep(0.001, 8, 12) = %d, want %d", got, maxStep)
	}
	got = difficultyStep(100000, 8, 12)
	if got != -maxStep {
		t.Errorf("difficultyStep(100000, 8, 12) = %d, want %d", got, -maxStep)
	}
}

func TestDifficultyStepZeroTimeIsMaxStep(t *testing.T) {
	if got := difficultyStep(0, 8, 12); got != maxStep {
		t.Errorf("difficultyStep(0, 8, 12) = %d, want %d", got, maxStep)
	}
}

func TestDifficultyStepExactMidpointIsZero(t *testing.T) {
	if got := difficultyStep(20, 10, 30); got != 0 {
		t.Errorf("difficultyStep(20, 10, 30) = %d, want 0 at exact midpoint", got)
	}
}

func TestClampDifficultyBounds(t *testing.T) {
	if got := clampDifficulty(100, 10, 50); got != 50 {
		t.Errorf("clampDifficulty(100, 10, 50) = %d, want 50", got)
	}
	if got := clampDifficulty(0, 10, 50); got != 10 {
		t.Errorf("clampDifficulty(0, 10, 50) = %d, want 10", got)
	}
	if got := clampDifficulty(25, 10, 50); got != 25 {
		t.Errorf("clampDifficulty(25, 10, 50) = %d, want 25", got)
	}
}

func TestAdjustDifficultyNoChangeInsideWindow(t *testing.T) {
	next, reason := adjustDifficulty(20, 10, 8, 12, 1, 64)
	if next != 20 {
		t.Errorf("adjustDifficulty in-window changed difficulty to %d, want unchanged 20", next)
	}
	if reason == "" {
		t.Error("expected a non-empty reason")
	}
}

func TestAdjustDifficultyHarderWhenFast(t *testing.T) {
	next, _ := adjustDifficulty(20, 2.5, 8, 12, 1, 64)
	if next != 22 {
		t.Errorf("adjustDifficulty(20, 2.5, 8, 12) = %d, want 22", next)
	}
}

func TestAdjustDifficultyEasierWhenSlow(t *testing.T) {
	next, _ := adjustDifficulty(20, 40, 8, 12, 1, 64)
	if next != 18 {
		t.Errorf("adjustDifficulty(20, 40, 8, 12) = %d, want 18", next)
	}
}

func TestAdjustDifficultyClampsAtFloor(t *testing.T) {
	next, _ := adjustDifficulty(3, 100000, 8, 12, 1, 64)
	if next != 1 {
		t.Errorf("adjustDifficulty clamped at floor = %d, want 1", next)
	}
}

func TestTimeoutStepHasMinimumMagnitudeTwo(t *testing.T) {
	// step would be -1 here (just past tMax); timeout must still apply at least 2.
	got := timeoutStep(13, 8, 12)
	if got < 2 {
		t.Errorf("timeoutStep(13, 8, 12) = %d, want >= 2", got)
	}
}

func TestTimeoutStepUsesControllerMagnitudeWhenLarger(t *testing.T) {
	got := timeoutStep(100000, 8, 12)
	if got != maxStep {
		t.Errorf("timeoutStep(100000, 8, 12) = %d, want %d", got, maxStep)
	}
}

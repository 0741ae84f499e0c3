package puzzle

import (
	"math"
	"strconv"
)

// maxStep is the largest magnitude a single difficulty adjustment may
// take in either direction.
const maxStep = 4

// clampStep restricts a signed step to [-maxStep, +maxStep].
func clampStep(step int) int {
	if step > maxStep {
		return maxStep
	}
	if step < -maxStep {
		return -maxStep
	}
	return step
}

// clampDifficulty restricts d to the configured [min, max] difficulty
// window.
func clampDifficulty(d int, min, max uint32) uint32 {
	if d < int(min) {
		return min
	}
	if d > int(max) {
		return max
	}
	return uint32(d)
}

// difficultyStep computes the signed difficulty adjustment for a
// measured solve time T against the target window [tMin, tMax]. A
// solve inside the window yields a zero step. Outside it, the step is
// clamp(floor(log2(mid/T)), -4, +4): solving faster than tMin yields a
// positive (harder) step, slower than tMax a negative (easier) one.
// Exact midpoint solves are defined to be a zero step even though the
// caller should not invoke this for T inside [tMin, tMax] in the first
// place.
func difficultyStep(t, tMin, tMax float64) int {
	if t <= 0 {
		return maxStep
	}
	if t >= tMin && t <= tMax {
		return 0
	}
	mid := (tMin + tMax) / 2
	if t == mid {
		return 0
	}
	raw := math.Log2(mid / t)
	return clampStep(int(math.Floor(raw)))
}

// adjustDifficulty applies the difficulty controller algorithm for a
// solve measured at t seconds of mining time, returning the new
// difficulty and a short human-readable reason string for the audit
// log.
func adjustDifficulty(current uint32, t, tMin, tMax float64, min, max uint32) (uint32, string) {
	step := difficultyStep(t, tMin, tMax)
	if step == 0 {
		return current, "solve time within target window, no change"
	}
	next := clampDifficulty(int(current)+step, min, max)
	verb := "harder"
	if step < 0 {
		verb = "easier"
	}
	return next, verbReason(verb, step, current, next)
}

// timeoutStep computes the difficulty decrease applied by the timeout
// watcher: the magnitude is at least 2, otherwise the magnitude of the
// step the controller would apply at the timeout boundary.
func timeoutStep(t, tMin, tMax float64) int {
	step := difficultyStep(t, tMin, tMax)
	mag := int(math.Ceil(math.Abs(float64(step))))
	if mag < 2 {
		mag = 2
	}
	return mag
}

func verbReason(verb string, step int, from, to uint32) string {
	return "solve time outside target window (" + sign(step) + "), difficulty " +
		verb + ": " + strconv.FormatUint(uint64(from), 10) + " -> " +
		strconv.FormatUint(uint64(to), 10)
}

func sign(step int) string {
	if step > 0 {
		return "faster than target"
	}
	return "slower than target"
}

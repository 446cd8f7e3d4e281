package humanoid

import (
	"context"
	"math"
	"time"

	"github.com/kmalloy/sitejudge/api/schemas"
)

// CognitivePause simulates a thinking pause. Longer pauses come with subtle
// idle cursor movement instead of a frozen pointer.
func (h *Humanoid) CognitivePause(ctx context.Context, meanMs, stdDevMs float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	fatigueFactor := 1.0 + h.fatigueLevel
	duration := time.Duration(fatigueFactor*(meanMs+h.rng.NormFloat64()*stdDevMs)) * time.Millisecond
	if duration <= 0 {
		return nil
	}
	h.recoverFatigue(duration)

	if duration > 100*time.Millisecond {
		return h.hesitate(ctx, duration)
	}
	return h.executor.Sleep(ctx, duration)
}

// hesitate keeps the cursor alive with small random movements around its
// current position for the given duration. Assumes the caller holds the lock.
func (h *Humanoid) hesitate(ctx context.Context, duration time.Duration) error {
	startPos := h.currentPos
	currentButtons := calculateButtonsBitfield(h.currentButtonState)
	startTime := time.Now()

	for time.Since(startTime) < duration {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		targetPos := startPos.Add(Vector2D{
			X: (h.rng.Float64() - 0.5) * 5,
			Y: (h.rng.Float64() - 0.5) * 5,
		})

		eventData := schemas.MouseEventData{
			Type:    schemas.MouseMove,
			X:       targetPos.X,
			Y:       targetPos.Y,
			Button:  schemas.ButtonNone,
			Buttons: currentButtons,
		}
		if err := h.executor.DispatchMouseEvent(ctx, eventData); err != nil {
			return err
		}
		h.currentPos = targetPos

		pauseDuration := time.Duration(50+h.rng.Intn(100)) * time.Millisecond
		if remaining := duration - time.Since(startTime); pauseDuration > remaining {
			pauseDuration = remaining
		}
		if pauseDuration <= 0 {
			break
		}
		if err := h.executor.Sleep(ctx, pauseDuration); err != nil {
			return err
		}
	}
	return nil
}

// applyGaussianNoise adds high-frequency tremor to a coordinate. Assumes the
// caller holds the lock.
func (h *Humanoid) applyGaussianNoise(point Vector2D) Vector2D {
	strength := h.dynamicConfig.GaussianStrength * (0.5 + h.rng.Float64())
	return Vector2D{
		X: point.X + h.rng.NormFloat64()*strength,
		Y: point.Y + h.rng.NormFloat64()*strength,
	}
}

// applyFatigueEffects adjusts the dynamic configuration to the current
// fatigue level. Assumes the caller holds the lock.
func (h *Humanoid) applyFatigueEffects() {
	fatigueFactor := 1.0 + h.fatigueLevel

	h.dynamicConfig.GaussianStrength = h.baseConfig.GaussianStrength * fatigueFactor
	h.dynamicConfig.PerlinAmplitude = h.baseConfig.PerlinAmplitude * fatigueFactor
	h.dynamicConfig.FittsA = h.baseConfig.FittsA * fatigueFactor
}

// updateFatigue raises the fatigue level in proportion to action intensity.
// Assumes the caller holds the lock.
func (h *Humanoid) updateFatigue(intensity float64) {
	h.fatigueLevel += h.baseConfig.FatigueIncreaseRate * intensity
	h.fatigueLevel = math.Min(1.0, h.fatigueLevel)
	h.applyFatigueEffects()
}

// recoverFatigue lowers the fatigue level during pauses. Assumes the caller
// holds the lock.
func (h *Humanoid) recoverFatigue(duration time.Duration) {
	h.fatigueLevel -= h.baseConfig.FatigueRecoveryRate * duration.Seconds()
	h.fatigueLevel = math.Max(0.0, h.fatigueLevel)
	h.applyFatigueEffects()
}

// calculateButtonsBitfield converts a MouseButton into the CDP bitfield
// representation.
func calculateButtonsBitfield(buttonState schemas.MouseButton) int64 {
	switch buttonState {
	case schemas.ButtonLeft:
		return 1
	case schemas.ButtonRight:
		return 2
	case schemas.ButtonMiddle:
		return 4
	}
	return 0
}

package humanoid

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kmalloy/sitejudge/api/schemas"
)

// computeEaseInOutCubic provides a smooth acceleration and deceleration
// profile: slow at the start and end of a movement, fast in the middle.
func computeEaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// calculateFittsLaw determines a realistic movement duration. Assumes the
// caller holds the lock.
func (h *Humanoid) calculateFittsLaw(distance float64) time.Duration {
	const W = 30.0 // Assumed default target width in pixels.
	id := math.Log2(1.0 + distance/W)

	// Dynamic config parameters are affected by fatigue.
	mt := h.dynamicConfig.FittsA + h.dynamicConfig.FittsB*id
	mt += mt * (h.rng.Float64()*0.3 - 0.15) // +/- 15%

	return time.Duration(mt) * time.Millisecond
}

// generateIdealPath creates a curved trajectory between two points using a
// cubic Bezier whose control points bow perpendicular to the straight line.
// Assumes the caller holds the lock.
func (h *Humanoid) generateIdealPath(start, end Vector2D, numSteps int) []Vector2D {
	p0, p3 := start, end
	mainVec := end.Sub(start)
	dist := mainVec.Mag()

	if dist < 1.0 || numSteps <= 1 {
		return []Vector2D{end}
	}

	// Bow magnitude scales with distance; the side is random so successive
	// movements do not all arc the same way.
	bend := dist * h.dynamicConfig.CurveBend * (0.3 + h.rng.Float64()*0.5)
	if h.rng.Intn(2) == 0 {
		bend = -bend
	}
	perp := mainVec.Normalize().Perp()

	p1 := start.Add(mainVec.Mul(1.0 / 3.0)).Add(perp.Mul(bend))
	p2 := start.Add(mainVec.Mul(2.0 / 3.0)).Add(perp.Mul(bend * (0.6 + h.rng.Float64()*0.3)))

	path := make([]Vector2D, numSteps)
	for i := 0; i < numSteps; i++ {
		t := float64(i) / float64(numSteps-1)
		omt := 1.0 - t
		omt2 := omt * omt
		omt3 := omt2 * omt
		t2 := t * t
		t3 := t2 * t

		path[i] = p0.Mul(omt3).Add(p1.Mul(3 * omt2 * t)).Add(p2.Mul(3 * omt * t2)).Add(p3.Mul(t3))
	}

	return path
}

// simulateTrajectory moves the cursor along a generated path, dispatching a
// mouse-move event per step. Assumes the caller holds the lock.
func (h *Humanoid) simulateTrajectory(ctx context.Context, start, end Vector2D, buttonState schemas.MouseButton) error {
	dist := start.Dist(end)
	// Sub-pixel movements have no trajectory; the caller's settle covers
	// them.
	if dist < 1.0 {
		return nil
	}
	duration := h.calculateFittsLaw(dist)

	// Step count grows with duration so long movements stay smooth; short
	// hops still get enough samples to read as a curve.
	numSteps := int(duration.Seconds() * 100)
	if numSteps < 8 {
		numSteps = 8
	}

	idealPath := h.generateIdealPath(start, end, numSteps)
	buttonsBitfield := calculateButtonsBitfield(buttonState)

	startTime := time.Now()

	for i := 0; i < len(idealPath); i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Ease the progression through the path to simulate acceleration
		// and deceleration.
		t := float64(i) / float64(len(idealPath)-1)
		easedT := computeEaseInOutCubic(t)

		pathIndex := int(easedT * float64(len(idealPath)-1))
		if pathIndex >= len(idealPath) {
			pathIndex = len(idealPath) - 1
		}
		currentPos := idealPath[pathIndex]

		// Sleep until this step's scheduled time.
		stepTime := startTime.Add(time.Duration(easedT * float64(duration)))
		if sleepDur := time.Until(stepTime); sleepDur > 0 {
			if err := h.executor.Sleep(ctx, sleepDur); err != nil {
				return err
			}
		}

		// Low-frequency Perlin drift plus high-frequency Gaussian tremor.
		perlinFrequency := 0.8
		timeElapsed := time.Since(startTime).Seconds()
		drift := Vector2D{
			X: h.noiseX.Noise1D(timeElapsed*perlinFrequency) * h.dynamicConfig.PerlinAmplitude,
			Y: h.noiseY.Noise1D(timeElapsed*perlinFrequency) * h.dynamicConfig.PerlinAmplitude,
		}
		perturbed := h.applyGaussianNoise(currentPos.Add(drift))

		eventData := schemas.MouseEventData{
			Type:   schemas.MouseMove,
			X:      perturbed.X,
			Y:      perturbed.Y,
			Button: schemas.ButtonNone,
		}
		if buttonsBitfield > 0 {
			eventData.Buttons = buttonsBitfield
		}

		if err := h.executor.DispatchMouseEvent(ctx, eventData); err != nil {
			if ctx.Err() == nil {
				h.logger.Warn("failed to dispatch mouse move event", zap.Error(err))
			}
			return err
		}

		h.currentPos = perturbed

		if err := h.executor.Sleep(ctx, time.Duration(2+h.rng.Intn(4))*time.Millisecond); err != nil {
			return err
		}
	}

	return nil
}

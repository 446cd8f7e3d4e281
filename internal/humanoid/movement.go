package humanoid

import (
	"context"
	"time"

	"github.com/kmalloy/sitejudge/api/schemas"
)

// MoveBetween traces a curved, human-paced path from start to end. The
// cursor is first placed at the start point with a plain move event, then
// travels the generated trajectory and settles with a terminal micro-jitter.
func (h *Humanoid) MoveBetween(ctx context.Context, start, end Vector2D) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.placeCursor(ctx, start); err != nil {
		return err
	}

	if err := h.simulateTrajectory(ctx, start, end, h.currentButtonState); err != nil {
		return err
	}
	h.updateFatigue(start.Dist(end) * 0.001)

	return h.settleAt(ctx, end)
}

// moveTo travels from the current cursor position to the target. Assumes the
// caller holds the lock.
func (h *Humanoid) moveTo(ctx context.Context, target Vector2D) error {
	if h.currentPos.Dist(target) < 1.0 {
		return h.settleAt(ctx, target)
	}
	if err := h.simulateTrajectory(ctx, h.currentPos, target, h.currentButtonState); err != nil {
		return err
	}
	return h.settleAt(ctx, target)
}

// placeCursor teleports the cursor with a single move event. Used to anchor
// the start of an explicit start-to-end movement. Assumes the caller holds
// the lock.
func (h *Humanoid) placeCursor(ctx context.Context, pos Vector2D) error {
	if h.currentPos.Dist(pos) < 1.0 {
		return nil
	}
	eventData := schemas.MouseEventData{
		Type:   schemas.MouseMove,
		X:      pos.X,
		Y:      pos.Y,
		Button: schemas.ButtonNone,
	}
	if err := h.executor.DispatchMouseEvent(ctx, eventData); err != nil {
		return err
	}
	h.currentPos = pos
	return nil
}

// settleAt finishes a movement on the exact target with a sub-pixel jitter,
// mimicking the small correction a hand makes as it comes to rest. Assumes
// the caller holds the lock.
func (h *Humanoid) settleAt(ctx context.Context, target Vector2D) error {
	final := Vector2D{
		X: target.X + (h.rng.Float64()-0.5)*1.0,
		Y: target.Y + (h.rng.Float64()-0.5)*1.0,
	}
	eventData := schemas.MouseEventData{
		Type:    schemas.MouseMove,
		X:       final.X,
		Y:       final.Y,
		Button:  schemas.ButtonNone,
		Buttons: calculateButtonsBitfield(h.currentButtonState),
	}
	if err := h.executor.DispatchMouseEvent(ctx, eventData); err != nil {
		return err
	}
	h.currentPos = final

	settle := time.Duration(30+h.rng.Intn(60)) * time.Millisecond
	return h.executor.Sleep(ctx, settle)
}

package humanoid

import (
	"context"
	"time"

	"github.com/kmalloy/sitejudge/api/schemas"
)

// ClickAt moves the cursor to the coordinate and performs a full
// press-hold-release click there.
func (h *Humanoid) ClickAt(ctx context.Context, x, y float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.moveTo(ctx, Vector2D{X: x, Y: y}); err != nil {
		return err
	}
	_, err := h.pressRelease(ctx, h.clickHoldDuration())
	return err
}

// PressAndHold presses the left button, keeps it down for hold while the
// cursor idles naturally, then releases. A zero coordinate holds at the
// current position, so a preceding mouse move decides where the press lands.
// Sites use long-press challenges to filter out scripted clicks; the idle
// motion during the hold is what makes this one pass.
func (h *Humanoid) PressAndHold(ctx context.Context, x, y float64, hold time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if x != 0 || y != 0 {
		if err := h.moveTo(ctx, Vector2D{X: x, Y: y}); err != nil {
			return err
		}
	}
	held, err := h.pressRelease(ctx, hold)
	if err != nil {
		return err
	}
	h.updateFatigue(held.Seconds() * 0.5)
	return nil
}

// pressRelease performs the press, hold, release sequence at the current
// position. Holds longer than 200ms idle with micro-movements instead of
// freezing. Assumes the caller holds the lock.
func (h *Humanoid) pressRelease(ctx context.Context, hold time.Duration) (time.Duration, error) {
	pos := h.currentPos

	mouseDown := schemas.MouseEventData{
		Type:       schemas.MousePress,
		X:          pos.X,
		Y:          pos.Y,
		Button:     schemas.ButtonLeft,
		ClickCount: 1,
		Buttons:    1,
	}
	if err := h.executor.DispatchMouseEvent(ctx, mouseDown); err != nil {
		return 0, err
	}
	h.currentButtonState = schemas.ButtonLeft

	var holdErr error
	if hold > 200*time.Millisecond {
		holdErr = h.hesitate(ctx, hold)
	} else {
		holdErr = h.executor.Sleep(ctx, hold)
	}
	if holdErr != nil {
		// Always release on the way out so the session is not left with a
		// stuck button.
		_ = h.releaseAtCurrent(context.Background())
		return hold, holdErr
	}

	if err := h.releaseAtCurrent(ctx); err != nil {
		return hold, err
	}
	return hold, nil
}

// releaseAtCurrent releases the left button at the current position. Assumes
// the caller holds the lock.
func (h *Humanoid) releaseAtCurrent(ctx context.Context) error {
	pos := h.currentPos
	mouseUp := schemas.MouseEventData{
		Type:       schemas.MouseRelease,
		X:          pos.X,
		Y:          pos.Y,
		Button:     schemas.ButtonLeft,
		ClickCount: 1,
		Buttons:    0,
	}
	err := h.executor.DispatchMouseEvent(ctx, mouseUp)
	h.currentButtonState = schemas.ButtonNone
	return err
}

// clickHoldDuration samples how long an ordinary click keeps the button
// down. Assumes the caller holds the lock.
func (h *Humanoid) clickHoldDuration() time.Duration {
	minMs := h.dynamicConfig.ClickHoldMinMs
	spread := h.dynamicConfig.ClickHoldMaxMs - minMs
	return time.Duration(minMs+h.rng.Intn(spread)) * time.Millisecond
}

package humanoid

import (
	"context"
	"time"

	"github.com/kmalloy/sitejudge/api/schemas"
)

// Executor is the low-level surface the simulation drives. Keeping it this
// narrow lets every movement and typing model run against a mock in tests,
// with the browser session supplying the real CDP-backed implementation.
type Executor interface {
	Sleep(ctx context.Context, d time.Duration) error
	DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error
	SendKeys(ctx context.Context, keys string) error
}

// Controller is the high-level interface the action dispatcher consumes.
type Controller interface {
	// MoveBetween traces a curved, human-paced path from start to end.
	MoveBetween(ctx context.Context, start, end Vector2D) error
	// ClickAt moves to the point and performs a press-hold-release click.
	ClickAt(ctx context.Context, x, y float64) error
	// PressAndHold presses at the point, keeps the button down for hold,
	// then releases. A zero coordinate presses at the current position.
	PressAndHold(ctx context.Context, x, y float64, hold time.Duration) error
	// TypeText emits text into the focused element one keystroke at a time.
	TypeText(ctx context.Context, text string) error
	CognitivePause(ctx context.Context, meanMs, stdDevMs float64) error
}

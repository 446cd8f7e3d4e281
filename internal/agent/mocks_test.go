package agent

import (
	"context"
	"sync"

	"github.com/kmalloy/sitejudge/api/schemas"
)

// scriptedLLM replays a fixed sequence of completions and records every
// request it saw.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []string
	requests []schemas.GenerationRequest
	err      error
}

func (s *scriptedLLM) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return `{"type": "conclude", "summary": "out of scripted replies"}`, nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func (s *scriptedLLM) Close() error { return nil }

// recordingDispatcher captures dispatched actions and returns canned results
// keyed by action type.
type recordingDispatcher struct {
	mu      sync.Mutex
	actions []schemas.Action
	results map[schemas.ActionType]*schemas.ActionResult
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{results: make(map[schemas.ActionType]*schemas.ActionResult)}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, action schemas.Action) *schemas.ActionResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = append(d.actions, action)
	if result, ok := d.results[action.Type]; ok {
		out := *result
		out.SessionName = action.SessionName
		out.Type = action.Type
		return &out
	}
	return &schemas.ActionResult{
		SessionName: action.SessionName,
		Type:        action.Type,
		Status:      schemas.StatusSuccess,
		Text:        "ok",
	}
}

func (d *recordingDispatcher) dispatched() []schemas.Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]schemas.Action, len(d.actions))
	copy(out, d.actions)
	return out
}

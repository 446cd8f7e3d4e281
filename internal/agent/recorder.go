// Package agent holds the two LLM agents of an evaluation run: the recorder
// that drives a browser session while documenting what it sees, and the
// evaluator that turns the recordings into a cross-site comparison.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/kmalloy/sitejudge/api/schemas"
	"github.com/kmalloy/sitejudge/internal/llmutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Meta-actions handled by the recorder itself, never dispatched to the
// browser.
const (
	actionStoreObservation schemas.ActionType = "store_observation"
	actionConclude         schemas.ActionType = "conclude"
)

// ActionDispatcher executes one tagged browser action. Implemented by
// browser.Dispatcher.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, action schemas.Action) *schemas.ActionResult
}

// decision is one parsed model reply: either a browser action or one of the
// recorder's meta-actions.
type decision struct {
	schemas.Action
	Thinking string `json:"thinking,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// Recorder drives a browser session step by step under LLM control and
// accumulates the observations the model stores along the way.
type Recorder struct {
	llm        schemas.LLMClient
	dispatcher ActionDispatcher
	logger     *zap.Logger
	maxSteps   int
	now        func() time.Time
}

// NewRecorder builds a recorder bounded by maxSteps model turns.
func NewRecorder(llm schemas.LLMClient, dispatcher ActionDispatcher, maxSteps int, logger *zap.Logger) *Recorder {
	if maxSteps <= 0 {
		maxSteps = 40
	}
	return &Recorder{
		llm:        llm,
		dispatcher: dispatcher,
		logger:     logger.Named("recorder"),
		maxSteps:   maxSteps,
		now:        time.Now,
	}
}

// Record runs one feature recording against one website. The browser session
// named sessionName must already be live. Model or browser level failures
// mid-run are captured in the recording rather than aborting it, so the
// comparison still sees what happened up to the failure.
func (r *Recorder) Record(ctx context.Context, sessionName string, website schemas.Website, feature schemas.Feature, featureInstruction string) *schemas.SiteRecording {
	rec := &schemas.SiteRecording{
		Website:     website,
		Feature:     feature,
		SessionName: sessionName,
		StartedAt:   r.now(),
	}
	defer func() { rec.FinishedAt = r.now() }()

	systemPrompt := RecorderSystemPrompt(r.now(), WebsiteInstructions(website.Key, website.Instructions))
	conversation := []schemas.Message{
		{Role: schemas.RoleUser, Text: RecordingTask(website.URL, featureInstruction)},
	}

	logger := r.logger.With(
		zap.String("website", website.Key),
		zap.String("feature", string(feature)),
		zap.String("session_name", sessionName),
	)
	logger.Info("Starting recording session.")

	for step := 1; step <= r.maxSteps; step++ {
		reply, err := r.llm.Generate(ctx, schemas.GenerationRequest{
			SystemPrompt: systemPrompt,
			Messages:     conversation,
			Tier:         schemas.TierPowerful,
		})
		if err != nil {
			rec.Err = fmt.Sprintf("model call failed at step %d: %v", step, err)
			logger.Error("Recording aborted on model failure.", zap.Int("step", step), zap.Error(err))
			break
		}
		conversation = append(conversation, schemas.Message{Role: schemas.RoleAssistant, Text: reply})

		d, err := llmutil.ParseJSONResponse[decision](reply)
		if err != nil {
			logger.Warn("Model reply was not a valid action.", zap.Int("step", step), zap.Error(err))
			conversation = append(conversation, schemas.Message{
				Role: schemas.RoleUser,
				Text: "Your reply could not be parsed as a single action JSON object. Reply with exactly one JSON object.",
			})
			continue
		}
		rec.Steps = step

		switch d.Type {
		case actionConclude:
			rec.Transcript = r.finalTranscript(d.Summary, rec.Observations)
			logger.Info("Recording concluded.", zap.Int("steps", step))
			return rec

		case actionStoreObservation:
			rec.Observations = append(rec.Observations, schemas.Observation{
				Step:      step,
				Action:    string(actionStoreObservation),
				Result:    "stored",
				Details:   d.Text,
				Timestamp: r.now(),
			})
			stored := llmutil.Truncate(d.Text, 50)
			conversation = append(conversation, schemas.Message{
				Role: schemas.RoleUser,
				Text: fmt.Sprintf("Stored: %s", stored),
			})

		default:
			action := d.Action
			action.SessionName = sessionName
			result := r.dispatcher.Dispatch(ctx, action)
			conversation = append(conversation, resultMessage(result))

			rec.Observations = append(rec.Observations, schemas.Observation{
				Step:      step,
				Action:    string(action.Type),
				Result:    string(result.Status),
				Details:   resultDetails(result),
				Timestamp: r.now(),
			})
		}

		if ctx.Err() != nil {
			rec.Err = fmt.Sprintf("recording cancelled at step %d: %v", step, ctx.Err())
			logger.Warn("Recording cancelled.", zap.Int("step", step))
			break
		}
	}

	if rec.Err == "" && rec.Transcript == "" {
		rec.Err = fmt.Sprintf("step budget of %d exhausted before the session concluded", r.maxSteps)
		logger.Warn("Recording hit the step budget.", zap.Int("max_steps", r.maxSteps))
	}
	rec.Transcript = r.finalTranscript("", rec.Observations)
	return rec
}

// finalTranscript joins the concluding summary with the stored observations,
// mirroring how a human reviewer would read the session.
func (r *Recorder) finalTranscript(summary string, observations []schemas.Observation) string {
	var b strings.Builder
	if summary != "" {
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	b.WriteString("## Detailed Records:\n")
	for _, obs := range observations {
		if obs.Action != string(actionStoreObservation) {
			continue
		}
		fmt.Fprintf(&b, "- %s\n", obs.Details)
	}
	return b.String()
}

// resultMessage converts a dispatch result into the model's next user turn.
// Screenshot bytes travel as an image part, everything else as text.
func resultMessage(result *schemas.ActionResult) schemas.Message {
	msg := schemas.Message{Role: schemas.RoleUser}
	if len(result.Screenshot) > 0 {
		msg.Images = [][]byte{result.Screenshot}
	}

	// Screenshots are stripped from the JSON body; the encoded result stays
	// compact enough to keep in the conversation.
	encoded, err := json.MarshalToString(result)
	if err != nil {
		encoded = fmt.Sprintf(`{"status": %q, "error_details": "failed to encode result"}`, result.Status)
	}
	msg.Text = fmt.Sprintf("Action result:\n%s", encoded)
	return msg
}

// resultDetails summarizes a dispatch result for the observation log without
// dragging whole page dumps along.
func resultDetails(result *schemas.ActionResult) string {
	if result.Status == schemas.StatusError {
		return fmt.Sprintf("%s: %s", result.ErrorCode, result.ErrorDetails)
	}
	if result.Text != "" {
		return llmutil.Truncate(result.Text, 200)
	}
	return string(result.Status)
}

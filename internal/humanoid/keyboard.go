package humanoid

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// commonNgrams contains letter combinations practiced typists roll through
// faster than unfamiliar sequences.
var commonNgrams = map[string]bool{
	"th": true, "he": true, "in": true, "er": true, "an": true, "re": true,
	"es": true, "on": true, "st": true, "nt": true,
	"the": true, "and": true, "ing": true, "ion": true, "tio": true,
}

// TypeText emits text into the currently focused element one keystroke at a
// time, with normally distributed inter-key delays, n-gram rhythm, and key
// dwell times. The caller is responsible for focusing the target first
// (usually with a coordinate click).
func (h *Humanoid) TypeText(ctx context.Context, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.updateFatigue(float64(len(text)) * 0.05)

	runes := []rune(text)
	for i := range runes {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := h.keyPause(ctx, runes, i); err != nil {
			return err
		}
		if err := h.executor.SendKeys(ctx, string(runes[i])); err != nil {
			return fmt.Errorf("failed to send key %q: %w", runes[i], err)
		}
		if err := h.executor.Sleep(ctx, h.keyHoldDuration()); err != nil {
			return err
		}
	}
	return nil
}

// keyHoldDuration samples how long a key stays down. Assumes the caller
// holds the lock.
func (h *Humanoid) keyHoldDuration() time.Duration {
	delay := h.rng.NormFloat64()*h.dynamicConfig.KeyHoldStdDev + h.dynamicConfig.KeyHoldMean
	if delay < 20.0 {
		delay = 20.0
	}
	return time.Duration(delay) * time.Millisecond
}

// keyPause introduces the inter-key delay before the keystroke at index.
// Common digraphs and trigraphs come out faster; fatigue slows everything
// down. Assumes the caller holds the lock.
func (h *Humanoid) keyPause(ctx context.Context, runes []rune, index int) error {
	cfg := h.dynamicConfig
	mean := cfg.KeyPauseMean
	minDelay := cfg.KeyPauseMin
	ngramFactor := 1.0

	if index >= 2 && commonNgrams[strings.ToLower(string(runes[index-2:index+1]))] {
		ngramFactor = cfg.KeyPauseNgramFactor3
	} else if index >= 1 && commonNgrams[strings.ToLower(string(runes[index-1:index+1]))] {
		ngramFactor = cfg.KeyPauseNgramFactor2
	}

	mean *= ngramFactor
	minDelay *= ngramFactor
	mean *= 1.0 + h.fatigueLevel*cfg.KeyPauseFatigueFactor

	delay := h.rng.NormFloat64()*cfg.KeyPauseStdDev + mean
	duration := time.Duration(math.Max(minDelay, delay)) * time.Millisecond

	h.recoverFatigue(duration)
	return h.executor.Sleep(ctx, duration)
}

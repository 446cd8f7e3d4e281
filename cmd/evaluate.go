package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kmalloy/sitejudge/internal/agent"
	"github.com/kmalloy/sitejudge/internal/browser"
	"github.com/kmalloy/sitejudge/internal/config"
	"github.com/kmalloy/sitejudge/internal/evaluation"
	"github.com/kmalloy/sitejudge/internal/llm"
	"github.com/kmalloy/sitejudge/internal/observability"
	"github.com/kmalloy/sitejudge/internal/recording"
	"github.com/kmalloy/sitejudge/internal/reporting"
)

// newEvaluateCmd creates the `evaluate` command: the full run across every
// configured website and feature. Flags are bound to viper at construction
// so they override config file and environment values.
func newEvaluateCmd(v *viper.Viper) *cobra.Command {
	evaluateCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Runs the full evaluation across all configured websites and features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			runID := uuid.New().String()
			logger.Info("Starting evaluation run",
				zap.String("runID", runID),
				zap.Int("websites", len(cfg.Evaluation.Websites)),
				zap.Strings("features", cfg.Evaluation.Features),
				zap.Int("parallelism", cfg.Evaluation.Parallelism),
			)

			results, err := runEvaluation(ctx, cfg, cfg.Evaluation, logger)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Evaluation aborted gracefully", zap.String("runID", runID))
					return fmt.Errorf("evaluation aborted by user signal")
				}
				return err
			}

			var failed int
			for _, result := range results {
				if result.Err != nil {
					failed++
					fmt.Printf("Feature %s failed: %v\n", result.Feature, result.Err)
					continue
				}
				fmt.Printf("Feature %s report: %s\n", result.Feature, result.ReportPath)
			}
			fmt.Printf("\nEvaluation complete. Run ID: %s\n", runID)
			if failed == len(results) && failed > 0 {
				return fmt.Errorf("all %d features failed", failed)
			}
			return nil
		},
	}

	flags := evaluateCmd.Flags()
	flags.String("output-dir", "", "directory for recording and report artifacts")
	flags.Int("parallelism", 0, "number of websites recorded concurrently")
	flags.Int("max-steps", 0, "model turn budget per recording session")
	flags.StringSlice("features", nil, "features to evaluate (default: all configured)")
	flags.String("destination", "", "search destination")
	flags.String("check-in", "", "check-in date (YYYY-MM-DD)")
	flags.String("check-out", "", "check-out date (YYYY-MM-DD)")

	bindEvaluationFlags(v, evaluateCmd)
	return evaluateCmd
}

// bindEvaluationFlags maps the shared evaluation flags onto their viper keys.
func bindEvaluationFlags(v *viper.Viper, cmd *cobra.Command) {
	bindings := map[string]string{
		"evaluation.output_dir":  "output-dir",
		"evaluation.parallelism": "parallelism",
		"evaluation.max_steps":   "max-steps",
		"evaluation.features":    "features",
		"evaluation.destination": "destination",
		"evaluation.check_in":    "check-in",
		"evaluation.check_out":   "check-out",
	}
	for key, flag := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// runEvaluation assembles the run components and executes one evaluation.
// evalCfg may be a narrowed copy of cfg.Evaluation (the record command runs
// a single website and feature through the same path).
func runEvaluation(ctx context.Context, cfg *config.Config, evalCfg config.EvaluationConfig, logger *zap.Logger) ([]evaluation.FeatureResult, error) {
	llmClient, err := llm.NewClient(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() {
		if err := llmClient.Close(); err != nil {
			logger.Warn("LLM client close failed", zap.Error(err))
		}
	}()

	manager := browser.NewManager(cfg, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser manager shutdown failed", zap.Error(err))
		}
	}()

	dispatcher := browser.NewDispatcher(manager, logger)
	recorder := agent.NewRecorder(llmClient, dispatcher, evalCfg.MaxSteps, logger)
	evaluator := agent.NewEvaluator(llmClient, logger)
	writer := reporting.NewWriter(evalCfg.OutputDir, logger)

	var locator evaluation.ReplayLocator
	if cfg.Recording.Enabled {
		loc, err := recording.NewLocator(ctx, cfg.Recording, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create recording locator: %w", err)
		}
		locator = loc
	}

	runner := evaluation.NewRunner(evalCfg, dispatcher, recorder, evaluator, writer, locator, logger)
	return runner.Run(ctx)
}

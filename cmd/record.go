package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kmalloy/sitejudge/api/schemas"
	"github.com/kmalloy/sitejudge/internal/agent"
	"github.com/kmalloy/sitejudge/internal/browser"
	"github.com/kmalloy/sitejudge/internal/llm"
	"github.com/kmalloy/sitejudge/internal/observability"
	"github.com/kmalloy/sitejudge/internal/reporting"
)

// newRecordCmd creates the `record` command: one recording session against
// one URL, with either a configured feature or a free-form task. Useful for
// iterating on site instructions without a full evaluation run.
func newRecordCmd(v *viper.Viper) *cobra.Command {
	var (
		feature string
		task    string
	)

	recordCmd := &cobra.Command{
		Use:   "record <url>",
		Short: "Records one session against a single URL",
		Long: `Records one browsing session against the given URL. The task comes from
either --feature (one of the configured evaluation features) or --task
(a free-form instruction for the recorder).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			url := args[0]
			if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
				url = "https://" + url
			}

			instruction := task
			if instruction == "" {
				if feature == "" {
					return fmt.Errorf("either --feature or --task is required")
				}
				instruction, err = agent.FeaturePrompt(schemas.Feature(feature),
					cfg.Evaluation.Destination, cfg.Evaluation.CheckIn, cfg.Evaluation.CheckOut)
				if err != nil {
					return err
				}
			}

			website := schemas.Website{Key: slugForURL(url), URL: url}
			// A configured site contributes its instruction overrides.
			for _, site := range cfg.Evaluation.Websites {
				if site.URL == url || site.Key == args[0] {
					website = schemas.Website{Key: site.Key, URL: site.URL, Instructions: site.Instructions}
					break
				}
			}

			logger.Info("Starting single recording session",
				zap.String("website", website.Key),
				zap.String("url", website.URL),
			)

			llmClient, err := llm.NewClient(ctx, cfg.LLM, logger)
			if err != nil {
				return fmt.Errorf("failed to create LLM client: %w", err)
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
			sessionName := fmt.Sprintf("%s_record_%s", website.Key, time.Now().UTC().Format("20060102_150405"))

			initRes := dispatcher.Dispatch(ctx, schemas.Action{
				Type:        schemas.ActionInitSession,
				SessionName: sessionName,
				URL:         website.URL,
			})
			if initRes.Status != schemas.StatusSuccess {
				return fmt.Errorf("failed to open session: %s: %s", initRes.ErrorCode, initRes.ErrorDetails)
			}
			defer dispatcher.Dispatch(context.WithoutCancel(ctx), schemas.Action{
				Type:        schemas.ActionClose,
				SessionName: sessionName,
			})

			recorder := agent.NewRecorder(llmClient, dispatcher, cfg.Evaluation.MaxSteps, logger)
			rec := recorder.Record(ctx, sessionName, website, schemas.Feature(feature), instruction)

			writer := reporting.NewWriter(cfg.Evaluation.OutputDir, logger)
			path, err := writer.WriteRecording(rec)
			if err != nil {
				return fmt.Errorf("failed to write recording: %w", err)
			}

			fmt.Printf("Recording written: %s\n", path)
			if rec.Err != "" {
				return fmt.Errorf("recording finished with an error: %s", rec.Err)
			}
			return nil
		},
	}

	recordCmd.Flags().StringVarP(&feature, "feature", "f", "", "evaluation feature to record")
	recordCmd.Flags().StringVarP(&task, "task", "t", "", "free-form task instruction for the recorder")
	return recordCmd
}

// slugForURL derives a stable artifact key from a URL: scheme and leading
// www. stripped, separators flattened to underscores.
func slugForURL(url string) string {
	slug := url
	for _, prefix := range []string{"https://", "http://", "www."} {
		slug = strings.TrimPrefix(slug, prefix)
	}
	if i := strings.IndexAny(slug, "?#"); i >= 0 {
		slug = slug[:i]
	}
	slug = strings.Trim(slug, "/")
	replacer := strings.NewReplacer("/", "_", ".", "_", "-", "_", ":", "_")
	return strings.ToLower(replacer.Replace(slug))
}

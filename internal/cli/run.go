package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anl331/vid-clipper/internal/config"
	"github.com/anl331/vid-clipper/internal/job"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Download, analyze and clip one video, then exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, args[0])
		},
	}

	cmd.Flags().String("model", "", "OpenRouter model id")
	cmd.Flags().Int("max-clips", 5, "Maximum clips to produce")
	cmd.Flags().Float64("min-duration", 20, "Minimum clip seconds")
	cmd.Flags().Float64("max-duration", 90, "Maximum clip seconds")
	cmd.Flags().Bool("reanalyze", false, "Ignore the cached analysis")
	cmd.Flags().String("format", config.FormatFullscreen, "Clip layout: fullscreen, split or center")
	cmd.Flags().String("anchor", config.AnchorAuto, "Crop anchor: auto, left, center or right")
	cmd.Flags().String("provider", config.ProviderLocal, "Transcription provider: local or remote")
	cmd.Flags().Bool("fallback", false, "Retry transcription with the other provider on failure")
	cmd.Flags().Bool("no-title", false, "Skip title overlays")
	cmd.Flags().Bool("no-teaser", false, "Skip the hook teaser")

	return cmd
}

func runOnce(cmd *cobra.Command, url string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	opts := optionsFromFlags(cmd, a.cfg)
	j, err := a.manager.Submit(url, opts)
	if err != nil {
		return err
	}

	// Ctrl-C cancels the job; the second signal kills the process.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(cmd.ErrOrStderr(), "stopping...")
		a.manager.Stop(j.ID())
	}()

	for !j.Status().Terminal() {
		time.Sleep(200 * time.Millisecond)
	}
	a.manager.Wait()

	snap := j.Snapshot()
	if snap.Status == job.StatusError {
		return fmt.Errorf("job failed: %s", snap.Error)
	}
	for _, c := range snap.Clips {
		if c.Err != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "skipped  %-40s %s\n", c.Title, c.Err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rendered %-40s %s (%.0fs)\n", c.Title, c.File, c.Duration)
	}
	return nil
}

func optionsFromFlags(cmd *cobra.Command, cfg *config.Config) config.JobOptions {
	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		model = cfg.OpenRouterModel
	}
	opts := config.DefaultJobOptions(model)

	opts.MaxClips, _ = cmd.Flags().GetInt("max-clips")
	opts.MinDuration, _ = cmd.Flags().GetFloat64("min-duration")
	opts.MaxDuration, _ = cmd.Flags().GetFloat64("max-duration")
	opts.Reanalyze, _ = cmd.Flags().GetBool("reanalyze")
	opts.ClipFormat, _ = cmd.Flags().GetString("format")
	opts.CropAnchor, _ = cmd.Flags().GetString("anchor")
	opts.TranscriptionProvider, _ = cmd.Flags().GetString("provider")
	opts.TranscriptionFallback, _ = cmd.Flags().GetBool("fallback")

	if noTitle, _ := cmd.Flags().GetBool("no-title"); noTitle {
		opts.TitleEnabled = false
	}
	if noTeaser, _ := cmd.Flags().GetBool("no-teaser"); noTeaser {
		opts.TeaserEnabled = false
	}
	return opts
}

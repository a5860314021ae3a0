package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MegaGrindStone/llamachat/internal/config"
	"github.com/MegaGrindStone/llamachat/internal/services"
	"github.com/MegaGrindStone/llamachat/internal/transcript"
	"github.com/MegaGrindStone/llamachat/internal/tui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	model      string
	host       string
}

func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a local language model in the terminal",
		Long: `Start an interactive chat with the configured model.

Every message is sent on its own, without the previous turns.
Press Enter to send, Esc or Ctrl+C to quit.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to the config file")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model to use (e.g., llama3)")
	cmd.Flags().StringVar(&opts.host, "host", "", "Inference host, overrides the config file")

	return cmd
}

func runChat(ctx context.Context, opts options) error {
	cfgDir, err := config.Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	cfgPath := opts.configPath
	if cfgPath == "" {
		cfgPath = filepath.Join(cfgDir, "config.yaml")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	cfg.SetModel(opts.model)
	cfg.SetHost(opts.host)

	// The terminal belongs to the chat, so logs go to a file.
	logPath := cfg.LogFile
	if logPath == "" {
		logPath = filepath.Join(cfgDir, "chat.log")
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "error opening log file")
	}
	defer logFile.Close()

	logger, err := cfg.Logger(logFile)
	if err != nil {
		return err
	}

	generator, err := cfg.Generator(logger)
	if err != nil {
		return err
	}

	inferenceOpts := []services.InferenceOption{services.WithFallbackMessage(cfg.FallbackMessage)}

	cache, err := cfg.ResponseCache(ctx, cfgDir)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
		inferenceOpts = append(inferenceOpts, services.WithCache(cache))
	}

	inference := services.NewInference(generator, logger, inferenceOpts...)

	if cfg.Warmup {
		go func() {
			if err := inference.Warmup(ctx); err != nil {
				logger.Warn().Err(err).Msg("Model warmup failed")
			}
		}()
	}

	m := tui.NewModel(ctx, inference, cfg.Model(), logger,
		transcript.WithInterval(cfg.Reveal.Interval),
		transcript.WithLogger(logger),
	)
	return tui.Run(m)
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

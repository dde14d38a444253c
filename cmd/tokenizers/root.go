package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/gomlx/go-tokenizers"
	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "tokenizers",
		Short:         "Encode, decode and train HuggingFace tokenizers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			setupLogger(cmd.ErrOrStderr(), loaded.LogLevel, loaded.LogFormat)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newEncodeCmd())
	cmd.AddCommand(newDecodeCmd())
	cmd.AddCommand(newTrainCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newConvertSPMCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(w io.Writer, levelStr, format string) {
	lvl, err := config.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

// loadTokenizer loads the configured tokenizer: a tokenizer.json file, or a directory or
// HuggingFace Hub model name for tokenizers.FromPretrainedWith.
func loadTokenizer(cfg config.TokenizerConfig) (*tokenizers.Tokenizer, error) {
	if cfg.Path == "" {
		return nil, errs.Errorf(errs.ErrConfig, "no tokenizer given, set it with --tokenizer-path")
	}
	if info, err := os.Stat(cfg.Path); err == nil && !info.IsDir() {
		return tokenizers.FromFile(cfg.Path)
	}
	pretrained := tokenizers.FromPretrainedWith(cfg.Path)
	if cfg.CacheDir != "" {
		pretrained = pretrained.CacheDir(cfg.CacheDir)
	}
	if cfg.Revision != "" {
		pretrained = pretrained.Revision(cfg.Revision)
	}
	return pretrained.Done()
}

// applyEncodeConfig configures truncation and padding of t. Options left at zero keep
// what the tokenizer was saved with.
func applyEncodeConfig(t *tokenizers.Tokenizer, cfg config.EncodeConfig) (*tokenizers.Tokenizer, error) {
	direction := tokenizers.Right
	if strings.EqualFold(cfg.Direction, "left") {
		direction = tokenizers.Left
	}
	if cfg.MaxLength > 0 {
		params := tokenizers.DefaultTruncationParams()
		params.MaxLength = cfg.MaxLength
		params.Stride = cfg.Stride
		params.Direction = direction
		var err error
		if t, err = t.WithTruncation(params); err != nil {
			return nil, errors.WithMessage(err, "configuring truncation")
		}
	}
	if cfg.PadToLength > 0 {
		t = t.WithPadToLength(cfg.PadToLength).WithPaddingDirection(direction)
	}
	if cfg.PadToMultipleOf > 0 {
		t = t.WithPaddingToMultipleOf(cfg.PadToMultipleOf).WithPaddingDirection(direction)
	}
	return t, nil
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	redactor "github.com/menta2k/image-redactor"
	"github.com/menta2k/image-redactor/internal/config"
	"github.com/menta2k/image-redactor/internal/logging"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image-redactor",
		Short: "Cover parts of an image with opaque rounded boxes",
		Long: `image-redactor flattens black redaction boxes into screenshots and web images.

Boxes are given in normalized coordinates (0..1 of the image width and height)
and exported as a PNG of the original size.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Configuration file path (default: "+config.GetConfigPath()+")")
	cmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	cmd.PersistentFlags().String("log-format", "", "Log format: text or json (overrides config)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewRedactCmd())
	cmd.AddCommand(NewInitConfigCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadSettings reads the configuration file and applies the logging flags
func loadSettings(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Log.Format = format
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}
	logger := logging.New(cmd.ErrOrStderr(), level, cfg.Log.Format)
	return cfg, logger, nil
}

// redactorOptions maps the configuration onto library options
func redactorOptions(cfg *config.Config, logger *slog.Logger) redactor.Options {
	return redactor.Options{
		Session:    cfg.Session(),
		Processing: cfg.Processing(),
		Analyzer:   cfg.Analyzer(),
		Logger:     logger,
	}
}

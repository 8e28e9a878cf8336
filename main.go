package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/debugsito/scrap-sunat/config"
	"github.com/debugsito/scrap-sunat/sheets"
)

var (
	// Global flags
	configPath      string
	credentialsPath string
	verbose         bool

	logger *zap.Logger
	cfg    *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "scrap-sunat",
	Short: "Consulta el padrón de contribuyentes de SUNAT",
	Long: `scrap-sunat drives the SUNAT "Consulta RUC" portal with a headless browser
and returns normalized taxpayer records.

Lookups run by name, by RUC or by identity document, from the command line,
over HTTP, from a Google Sheet or through a Telegram bot.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = loadConfig(cmd, configPath)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&credentialsPath, "credentials", "", "Path to Google service account credentials JSON file (or use GOOGLE_SHEETS_CREDENTIALS env var)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(botCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the YAML file when present, then the environment.
// A missing default file falls back to defaults; a missing explicit file is an error.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	var c *config.Config
	if _, err := os.Stat(path); err == nil {
		c, err = config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		logger.Debug("Loaded config file", zap.String("path", path))
	} else {
		if cmd.Flags().Changed("config") {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		logger.Debug("Config file not found. Using default configuration.", zap.String("path", path))
		c = config.GetDefaultConfig()
	}

	c.ApplyEnv()
	if credentialsPath != "" {
		c.Sheets.CredentialsFile = credentialsPath
	}
	c.Sheets.SpreadsheetID = sheets.ExtractSpreadsheetID(c.Sheets.SpreadsheetID)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// sheetCredentials returns the configured service account, or an error when none is set
func sheetCredentials() (sheets.Credentials, error) {
	creds := sheets.Credentials{File: cfg.Sheets.CredentialsFile, JSON: cfg.Sheets.CredentialsJSON}
	if creds.File == "" && creds.JSON == "" {
		return creds, errors.New("GOOGLE_SHEETS_CREDENTIALS environment variable is not set and no credentials file path provided")
	}
	return creds, nil
}

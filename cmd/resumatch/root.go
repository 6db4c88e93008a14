package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xhad/resumatch/pkg/config"
	"github.com/xhad/resumatch/pkg/logger"
	"go.uber.org/zap"
)

const app = "resumatch"

var (
	// Used for flags.
	cfgFile  string
	envFile  string
	debug    bool
	jsonLogs bool

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "resumatch scores a resume against job descriptions with retrieval-augmented generation",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is config.yaml in current directory)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&jsonLogs, "json", "j", false, "json format for logging")
}

// loadConfig resolves the configuration and builds the logger shared by
// every subcommand.
func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	if cmd.Flags().Changed("debug") {
		cfg.Log.Debug = debug
	}
	if cmd.Flags().Changed("json") {
		cfg.Log.JSON = jsonLogs
	}

	if verrs := cfg.Validate(); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, v := range verrs {
			msgs[i] = v.Error()
		}
		return nil, nil, fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}

	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug, cfg.Log.File)
	if err != nil {
		return nil, nil, fmt.Errorf("creating a logger: %w", err)
	}

	return cfg, log, nil
}

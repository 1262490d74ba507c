package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/cmd/admins"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/cmd/users"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/config"
)

var (
	cfg        *config.Config
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "twothumbsup",
	Short: "TwoThumbsUp API server",
	Long: `TwoThumbsUp serves a quote and image sharing API with local sessions,
external OIDC tokens and anonymous likes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file %s: %w", configFile, err)
			}
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		configureLogging(cfg.Logging)
		return nil
	},
}

func configureLogging(c config.LoggingConfig) {
	if c.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		log.Warnf("unknown log level %q, using info", c.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a config file (yaml, toml or json)")
	flags.String("db-url", "", "Database connection URL (env: TTU_DATABASE_URL)")
	flags.String("server-addr", "", "Server bind address (env: TTU_SERVER_ADDR)")
	flags.String("environment", "", "development or production (env: TTU_ENVIRONMENT)")
	flags.Bool("debug", false, "Enable debug logging (env: TTU_DEBUG)")

	for key, flag := range map[string]string{
		"database_url": "db-url",
		"server_addr":  "server-addr",
		"environment":  "environment",
		"debug":        "debug",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(users.UsersCmd)
	rootCmd.AddCommand(admins.AdminsCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

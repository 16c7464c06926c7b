package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pders01/roster/internal/config"
	"github.com/pders01/roster/internal/debuglog"
)

// Version is the version of the application, set at build time
var Version = "dev"

var (
	flagConfig    string
	flagEnvFile   string
	flagLogLevel  string
	flagConfigOut string
)

// cfg is loaded before any command that needs it runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Member directory and article timeline",
	Long: `roster keeps a declarative member directory and aggregates the members'
blog feeds into one paginated, filterable article timeline.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = debuglog.Close()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", appName, Version)
		fmt.Println("Member timeline aggregator")
		fmt.Println("github.com/pders01/roster")
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configGenCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a default configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		path := flagConfigOut
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if err := config.GenerateDefaultConfig(path); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default configuration at: %s\n", path)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override log level (debug, info, warn, error, off)")

	configGenCmd.Flags().StringVar(&flagConfigOut, "path", "", "where to write the file (default: XDG config home)")
	configCmd.AddCommand(configGenCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(membersCmd)
	rootCmd.AddCommand(memberCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statusCmd)
}

// setup loads .env, the configuration and the logger.
func setup(cmd *cobra.Command, args []string) error {
	if cmd == versionCmd || cmd == configGenCmd {
		return nil
	}

	if flagEnvFile != "" {
		if err := godotenv.Load(flagEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", flagEnvFile, err)
		}
	}

	loaded, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if flagLogLevel != "" {
		loaded.Log.Level = flagLogLevel
	}

	if err := debuglog.Setup(debuglog.ParseLogLevel(loaded.Log.Level), loaded.Log.File); err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}

	cfg = loaded
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the CLI. Settings come from flags, QRLINK_* environment
// variables and an optional config file, in that order of precedence.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "qrlink",
		Short: "QR link CLI - resolve and store QR code payloads",
		Long: `QR link Command Line Interface

Computes the payload a QR code should carry for a URL or a file, uploads files
through a qrlink gateway and inspects its storage.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(v, configFile)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (optional)")
	rootCmd.PersistentFlags().String("gateway", "http://localhost:8080", "gateway base URL")
	rootCmd.PersistentFlags().String("base-url", "", "public base URL for payloads (defaults to the gateway URL)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	for _, name := range []string{"gateway", "base-url", "verbose"} {
		cobra.CheckErr(v.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)))
	}

	// Add subcommands
	rootCmd.AddCommand(NewUploadCommand(v))
	rootCmd.AddCommand(NewResolveCommand(v))
	rootCmd.AddCommand(NewLocateCommand(v))
	rootCmd.AddCommand(NewBlobsCommand(v))

	return rootCmd
}

func loadConfig(v *viper.Viper, configFile string) error {
	v.SetEnvPrefix("QRLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		return nil
	}
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func baseURL(v *viper.Viper) string {
	if u := v.GetString("base-url"); u != "" {
		return u
	}
	return v.GetString("gateway")
}

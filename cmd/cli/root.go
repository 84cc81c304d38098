// Package cli implements the Cobra-based command-line interface: scan
// execution, topology layout, and the API server.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/config"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

// Build information - set by main via SetVersion.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "netrecon",
	Short: "Network reconnaissance and vulnerability assessment",
	Long: `netrecon probes hosts for open ports, analyzes service banners for
known-vulnerable versions, drives deeper scans through the nmap utility
when available, and lays networks out as 3D topology documents.`,
	Version: getVersion(),
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./netrecon.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig reads the config file and matching environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("netrecon")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("NETRECON")

	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	initLogging()
}

// setConfigDefaults mirrors config.Default for viper-sourced settings.
func setConfigDefaults() {
	viper.SetDefault("scanning.probe_concurrency", 50)
	viper.SetDefault("scanning.port_cap", 1000)
	viper.SetDefault("scanning.banner_port_cap", 10)

	viper.SetDefault("deep_scan.intensity", "normal")
	viper.SetDefault("deep_scan.max_ports", 100)

	viper.SetDefault("topology.iterations", 100)
	viper.SetDefault("topology.bounds", 50.0)

	viper.SetDefault("api.listen_addr", "127.0.0.1")
	viper.SetDefault("api.port", 8080)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stdout")
}

// loadConfig loads the layered configuration for a command run.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.ConfigFileUsed())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the build information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging configures the default logger from the loaded config.
func initLogging() {
	cfg, err := config.Load(viper.ConfigFileUsed())
	if err != nil {
		logging.SetDefault(logging.NewDefault())
		return
	}

	logConfig := cfg.Logging
	if verbose {
		logConfig.Level = logging.LevelDebug
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)
}

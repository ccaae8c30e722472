// Package cmd implements the ebay-oauth CLI commands.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/giantswarm/oauth2-ebay/providers"
	"github.com/giantswarm/oauth2-ebay/providers/ebay"
)

// Configuration keys. Each is settable by flag, EBAY_<KEY> environment
// variable or config file.
const (
	keyClientID     = "client_id"
	keyClientSecret = "client_secret"
	keyRedirectURL  = "redirect_url"
	keyRegion       = "region"
	keySandbox      = "sandbox"
	keyScopes       = "scopes"
	keyTimeout      = "timeout"
	keyLogLevel     = "log_level"
	keyLogFormat    = "log_format"
	keyListen       = "listen"
	keyTelemetry    = "telemetry"
)

var cfgFile string

// logger is built once the configuration is loaded.
var logger = slog.Default()

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ebay-oauth",
		Short: "Obtain and inspect eBay OAuth user tokens",
		Long: "ebay-oauth drives eBay's OAuth authorization code flow from the terminal.\n" +
			"It prints regional endpoints, builds consent URLs, exchanges codes for\n" +
			"user tokens, refreshes them and resolves the token owner's eBay user id.",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := initConfig(viper.GetViper(), cfgFile); err != nil {
				return err
			}
			logger = newLogger(os.Stderr, viper.GetString(keyLogLevel), viper.GetString(keyLogFormat))
			if viper.GetBool(keyTelemetry) {
				inst, err := newTelemetry(os.Stderr, version)
				if err != nil {
					return err
				}
				telemetry = inst
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $HOME/.ebay-oauth.yaml)")
	flags.String("client-id", "", "eBay App ID")
	flags.String("client-secret", "", "eBay Cert ID")
	flags.String("redirect-url", "", "RuName registered for the application")
	flags.String("region", ebay.DefaultRegion.String(), "marketplace id, e.g. EBAY_US or EBAY_FR")
	flags.Bool("sandbox", false, "use eBay's sandbox environment")
	flags.StringSlice("scopes", nil, "OAuth scopes (default "+ebay.DefaultScope+")")
	flags.Duration("timeout", providers.DefaultRequestTimeout, "timeout for each eBay API call")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.Bool("telemetry", false, "write spans and metrics to stderr")

	bindFlags(viper.GetViper(), root)

	root.AddCommand(regionsCmd())
	root.AddCommand(endpointsCmd())
	root.AddCommand(authorizeURLCmd())
	root.AddCommand(loginCmd())
	root.AddCommand(refreshCmd())

	return root
}

func bindFlags(v *viper.Viper, root *cobra.Command) {
	flags := root.PersistentFlags()
	for key, flag := range map[string]string{
		keyClientID:     "client-id",
		keyClientSecret: "client-secret",
		keyRedirectURL:  "redirect-url",
		keyRegion:       "region",
		keySandbox:      "sandbox",
		keyScopes:       "scopes",
		keyTimeout:      "timeout",
		keyLogLevel:     "log-level",
		keyLogFormat:    "log-format",
		keyTelemetry:    "telemetry",
	} {
		cobra.CheckErr(v.BindPFlag(key, flags.Lookup(flag)))
	}
}

// version is set at build time with -ldflags.
var version = "dev"

// Execute runs the root command.
func Execute() error {
	defer shutdownTelemetry()
	return rootCmd.Execute()
}

// initConfig reads the config file and environment into v. A missing default
// config file is not an error; a missing explicit one is.
func initConfig(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigType("yaml")
		v.SetConfigName(".ebay-oauth")
	}

	v.SetEnvPrefix("EBAY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	return nil
}

// providerConfig builds the provider configuration from v.
func providerConfig(v *viper.Viper, log *slog.Logger) (*ebay.Config, error) {
	region, ok := ebay.ParseRegion(v.GetString(keyRegion))
	if !ok {
		return nil, fmt.Errorf("unknown region %q (see 'ebay-oauth regions')", v.GetString(keyRegion))
	}

	timeout := v.GetDuration(keyTimeout)
	if timeout <= 0 {
		timeout = providers.DefaultRequestTimeout
	}

	return &ebay.Config{
		ClientID:        v.GetString(keyClientID),
		ClientSecret:    v.GetString(keyClientSecret),
		RedirectURL:     v.GetString(keyRedirectURL),
		Scopes:          splitScopes(v.GetStringSlice(keyScopes)),
		Sandbox:         v.GetBool(keySandbox),
		Region:          region,
		RequestTimeout:  timeout,
		Logger:          log,
		Instrumentation: telemetry,
	}, nil
}

// splitScopes accepts scopes given as repeated values, comma lists or a
// single space separated string as used in config files.
func splitScopes(raw []string) []string {
	var scopes []string
	for _, item := range raw {
		scopes = append(scopes, strings.Fields(strings.ReplaceAll(item, ",", " "))...)
	}
	return scopes
}

func newProvider(v *viper.Viper) (*ebay.Provider, error) {
	cfg, err := providerConfig(v, logger)
	if err != nil {
		return nil, err
	}
	p, err := ebay.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating eBay provider: %w", err)
	}
	return p, nil
}

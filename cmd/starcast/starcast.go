package main

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/starcasthq/starcast/node"
	"github.com/starcasthq/starcast/utils"
)

// Version is set at build time via ldflags.
var Version string

const greeting = `
      _                             _
  ___| |_ __ _ _ __ ___ __ _ ___| |_
 / __| __/ _' | '__/ __/ _' / __| __|
 \__ \ || (_| | | | (_| (_| \__ \ |_
 |___/\__\__,_|_|  \___\__,_|___/\__|

Starcast is the vote ledger and aggregation engine for talent competitions.

`

const (
	configF       = "config"
	logLevelF     = "log-level"
	colourF       = "colour"
	httpPortF     = "http-port"
	dbPathF       = "db-path"
	directoryURLF = "directory-url"
	paymentsURLF  = "payments-url"
	metricsF      = "metrics"
	metricsPortF  = "metrics-port"
	pprofF        = "pprof"
	pprofPortF    = "pprof-port"

	defaultConfig      = ""
	defaultColour      = true
	defaultHTTPPort    = uint16(8080)
	defaultDBPath      = ""
	defaultMetrics     = false
	defaultMetricsPort = uint16(9090)
	defaultPprof       = false
	defaultPprofPort   = uint16(9080)

	configFlagUsage   = "The yaml configuration file."
	logLevelFlagUsage = "Options: debug, info, warn, error."
	colourUsage       = "Uses --colour=false command to disable colourized outputs (ANSI Escape Codes)."
	httpPortUsage     = "The port on which the REST API will listen for requests."
	dbPathUsage       = "Location of the database files."
	directoryURLUsage = "The competition directory endpoint competitions are validated against."
	paymentsURLUsage  = "The payment gateway endpoint vote purchases are charged through."
	metricsUsage      = "Enables the Prometheus metrics endpoint."
	metricsPortUsage  = "The port on which the Prometheus endpoint will listen for requests."
	pprofUsage        = "Enables the pprof endpoint."
	pprofPortUsage    = "The port on which the pprof HTTP server will listen for requests."
)

var cfgFile string

// NewCmd returns a command that spins up a new Starcast node with the given
// config. A config precedence of flags > env vars > config file > defaults is
// enforced through viper.
func NewCmd(config *node.Config, run func(*cobra.Command, []string) error) *cobra.Command {
	starcastCmd := &cobra.Command{
		Use:     "starcast [flags]",
		Short:   "Vote ledger and aggregation engine for talent competitions.",
		Version: Version,
		RunE:    run,
	}

	defaultLogLevel := utils.INFO
	starcastCmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		v := viper.New()
		if cfgFile != "" {
			v.SetConfigType("yaml")
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return err
			}
		}
		v.SetEnvPrefix("STARCAST")
		v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		v.AutomaticEnv()

		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		return v.Unmarshal(config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)))
	}

	starcastCmd.Flags().StringVar(&cfgFile, configF, defaultConfig, configFlagUsage)
	starcastCmd.Flags().Var(&defaultLogLevel, logLevelF, logLevelFlagUsage)
	starcastCmd.Flags().Bool(colourF, defaultColour, colourUsage)
	starcastCmd.Flags().Uint16(httpPortF, defaultHTTPPort, httpPortUsage)
	starcastCmd.Flags().String(dbPathF, defaultDBPath, dbPathUsage)
	starcastCmd.Flags().String(directoryURLF, "", directoryURLUsage)
	starcastCmd.Flags().String(paymentsURLF, "", paymentsURLUsage)
	starcastCmd.Flags().Bool(metricsF, defaultMetrics, metricsUsage)
	starcastCmd.Flags().Uint16(metricsPortF, defaultMetricsPort, metricsPortUsage)
	starcastCmd.Flags().Bool(pprofF, defaultPprof, pprofUsage)
	starcastCmd.Flags().Uint16(pprofPortF, defaultPprofPort, pprofPortUsage)

	return starcastCmd
}

func greet(cmd *cobra.Command) error {
	_, err := fmt.Fprint(cmd.OutOrStdout(), greeting)
	return err
}

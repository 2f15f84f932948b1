package protocol

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/datazip-inc/olake-jdbc/constants"
	"github.com/datazip-inc/olake-jdbc/drivers/abstract"
	"github.com/datazip-inc/olake-jdbc/telemetry"
	"github.com/datazip-inc/olake-jdbc/utils"
	"github.com/datazip-inc/olake-jdbc/utils/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const notSet = "not-set"

var (
	configPath  string
	statePath   string
	logLevel    string
	metricsAddr string
	once        bool

	commands  = []*cobra.Command{}
	connector *abstract.AbstractDriver
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "olake-jdbc",
	Short: "incremental JDBC source",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		viper.SetDefault(constants.ConfigFolder, os.TempDir())
		viper.SetDefault(constants.StatePath, filepath.Join(os.TempDir(), constants.DefaultStateFileName))
		if configPath != notSet {
			configFolder := filepath.Dir(configPath)
			viper.Set(constants.ConfigFolder, configFolder)
			viper.Set(constants.StatePath, utils.Ternary(statePath == "", filepath.Join(configFolder, constants.DefaultStateFileName), statePath).(string))
		} else if statePath != "" {
			viper.Set(constants.StatePath, statePath)
		}
		if logLevel != "" {
			viper.Set(constants.LogLevel, logLevel)
		}
		if metricsAddr != "" {
			viper.Set(constants.MetricsAddr, metricsAddr)
		}

		// logger uses CONFIG_FOLDER
		logger.Init()
		telemetry.Init(viper.GetString(constants.MetricsAddr))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return fmt.Errorf("'%s' is an invalid command. Use 'olake-jdbc --help' to display usage guide", args[0])
	},
}

func CreateRootCommand(driver *abstract.AbstractDriver) *cobra.Command {
	connector = driver
	return RootCmd
}

// loadConfig reads --config into the connector's config
func loadConfig() error {
	if configPath == notSet {
		return fmt.Errorf("--config not passed")
	}
	return utils.UnmarshalFile(configPath, connector.GetConfigRef())
}

func init() {
	viper.SetEnvPrefix("OLAKE_JDBC")
	viper.AutomaticEnv()

	commands = append(commands, specCmd, checkCmd, syncCmd)
	RootCmd.AddCommand(commands...)
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "", notSet, "(Required) Config for connector")
	RootCmd.PersistentFlags().StringVarP(&statePath, "state", "", "", "(Optional) State file of the file offset store, defaults to state.json next to the config")
	RootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", "", "(Optional) trace, debug, info, warn or error")
	RootCmd.PersistentFlags().StringVarP(&metricsAddr, "metrics-addr", "", "", "(Optional) Address to serve prometheus metrics on, e.g. :9090")
	// Disable Cobra CLI's built-in usage and error handling
	RootCmd.SilenceUsage = true
	RootCmd.SilenceErrors = true
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"athlete-payment-reconciler/cmd/reconciler/config"
	"athlete-payment-reconciler/internal/reconciler"
	"athlete-payment-reconciler/internal/reporter"
	"athlete-payment-reconciler/internal/storage"
	"athlete-payment-reconciler/pkg/errors"
	"athlete-payment-reconciler/pkg/logger"
)

var (
	cfgFile   string
	envFile   string
	dbPath    string
	verbose   bool
	configErr error
	version   = "dev"
	commit    = "unknown"
	date      = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Athlete payment reconciliation tool",
	Long: `Reconciler matches the incoming transfers of a bank statement to the
athletes of a sports club and books the confirmed payments on their accounts.

Rows are matched from remembered descriptions first, then automatically by
payer name and amount against the open dues. Rows that stay unmatched come
with ranked suggestions and, for transfers covering several siblings, split
options.

Examples:
  reconciler roster load --file athletes.yaml
  reconciler charge --all --amount 350 --date 2024-06-01 --description "Haziran aidatı"
  reconciler import --file statement.xlsx
  reconciler import --file statement.xlsx --assign 7=ath-12 --split 9=ath-3,ath-4 --confirm
  reconciler dues --output-format csv
  reconciler history list`,
	Version:           getVersionString(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional, YAML)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides storage.path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("storage.path", rootCmd.PersistentFlags().Lookup("db"))
}

// initConfig reads the dotenv file, the config file and the environment
func initConfig() {
	configErr = nil

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			configErr = errors.ConfigurationError(errors.CodeInvalidConfig, "env-file", envFile, err)
			return
		}
	}

	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			configErr = errors.ConfigurationError(errors.CodeMissingConfig, "config", cfgFile, err).
				WithSuggestion("check the path and YAML syntax of the config file")
			return
		}
	}

	viper.SetEnvPrefix("RECONCILER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func setupLogging(cmd *cobra.Command, args []string) error {
	if configErr != nil {
		return configErr
	}

	logConfig, err := config.CreateLoggerConfig(viper.GetViper(), viper.GetBool("verbose"))
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(logConfig)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log", logConfig, err)
	}
	logger.SetGlobalLogger(log)

	if cfgFile != "" {
		log.WithField("config_file", viper.ConfigFileUsed()).Debug("Using config file")
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// reportWriter returns stdout, or the created file for a non-empty path.
// The returned close function is always safe to call.
func reportWriter(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	file, err := reporter.CreateOutput(path)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { file.Close() }, nil
}

// openStore opens the configured store. The caller closes it.
func openStore(ctx context.Context) (storage.Store, error) {
	storageConfig, err := config.CreateStorageConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return storage.Open(ctx, storageConfig)
}

// newService wires a reconciliation service over store. strict selects the
// strict matching profile regardless of configuration.
func newService(store storage.Store, strict bool) (*reconciler.ReconciliationService, error) {
	v := viper.GetViper()
	if strict {
		v.Set("matching.profile", config.ProfileStrict)
	}

	matchingConfig, err := config.CreateMatchingConfig(v)
	if err != nil {
		return nil, err
	}
	reconcilerConfig, err := config.CreateReconcilerConfig(v)
	if err != nil {
		return nil, err
	}
	return reconciler.NewReconciliationService(store, store, store, store.History(), matchingConfig, reconcilerConfig)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}

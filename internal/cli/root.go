package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/criteo/install-registry/internal/cli/output"
	"github.com/criteo/install-registry/internal/config"
	"github.com/criteo/install-registry/internal/fetch"
	"github.com/criteo/install-registry/internal/installer"
	"github.com/criteo/install-registry/internal/manager"
	"github.com/criteo/install-registry/internal/manifest"
	"github.com/criteo/install-registry/internal/metrics"
	"github.com/criteo/install-registry/internal/server"
	"github.com/criteo/install-registry/internal/storage"
)

// rootOptions holds the global flags of one command tree
type rootOptions struct {
	v            *viper.Viper
	configFile   string
	outputFormat string
}

// NewRootCommand assembles the umreg command tree
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{v: config.NewViper()}
	root := &cobra.Command{
		Use:   "umreg",
		Short: "Update Manager installation registry",
		Long: `umreg manages a local installation tree of versioned products, components,
plugins and fragments: what is present, what is active, and what may safely be
installed, upgraded or removed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.addGlobalFlags(root)

	root.AddCommand(newServerCommand(opts))
	root.AddCommand(newAuthCommand())
	root.AddCommand(newListCommand(opts))
	root.AddCommand(newCheckCommand(opts))
	root.AddCommand(newInstallCommand(opts))
	root.AddCommand(newUninstallCommand(opts))
	root.AddCommand(newDiscoverCommand(opts))
	root.AddCommand(newActivationCommand(opts))

	root.SetVersionTemplate(`{{.Version}}
`)
	return root
}

// addGlobalFlags registers the flags shared by every command and binds them
// over the environment and config file
func (o *rootOptions) addGlobalFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVarP(&o.configFile, "config", "c", "", "Path to configuration file (or UMREG_CONFIG_FILE env var)")
	flags.String("install-url", "", "Base URL of the installation tree (or UMREG_INSTALL_URL)")
	flags.String("storage-uri", "", "Activation record URI: file://, s3://, s3+http:// or oci:// (or UMREG_STORAGE_URI)")
	flags.String("storage-token", "", "Storage credentials (or UMREG_STORAGE_TOKEN)")
	flags.String("log-level", "", "Log level: debug, info, warn, error (or UMREG_LOGGING_LEVEL)")
	flags.String("log-format", "", "Log format: json or text (or UMREG_LOGGING_FORMAT)")
	flags.StringVarP(&o.outputFormat, "output", "o", string(output.FormatTable), "Output format: table, json or yaml")

	for key, name := range map[string]string{
		"install.url":    "install-url",
		"storage.uri":    "storage-uri",
		"storage.token":  "storage-token",
		"logging.level":  "log-level",
		"logging.format": "log-format",
	} {
		_ = o.v.BindPFlag(key, flags.Lookup(name))
	}
}

// loadConfig reads the config file, environment and flags, in increasing
// precedence
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configFile == "" {
		o.configFile = os.Getenv(config.EnvPrefix + "_CONFIG_FILE")
	}
	if o.configFile != "" {
		if err := config.ReadConfigFile(o.v, o.configFile); err != nil {
			return nil, err
		}
	}

	cfg, err := config.LoadWithViper(o.v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// environment is what one command invocation runs against
type environment struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    storage.Store
	recorder *metrics.Recorder
	session  *installer.Session
	format   output.Format
}

func (e *environment) Close() error {
	return e.store.Close()
}

// openEnvironment loads the configuration, opens the activation record and
// builds a session over the installation tree. Logs go to logs so they never
// mix with command output.
func (o *rootOptions) openEnvironment(logs io.Writer) (*environment, error) {
	format, err := output.ParseFormat(o.outputFormat)
	if err != nil {
		return nil, err
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := server.NewLoggerTo(logs, cfg.Logging.Level, cfg.Logging.Format)

	uri, err := cfg.GetParsedStorageURI()
	if err != nil {
		return nil, fmt.Errorf("invalid storage URI: %w", err)
	}
	store, err := storage.NewStorage(uri, cfg.Storage.Token, logger)
	if err != nil {
		logger.Error("Failed to initialize storage",
			"error", err,
			"storage_uri", cfg.Storage.URI,
			"storage_token", cfg.MaskToken())
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	rec := metrics.New()
	loader := manifest.NewLoader(fetch.NewMux(cfg.Fetch.Timeout, logger), logger)
	m := manager.New(cfg.InstallURL(), loader, store, rec, logger)
	return &environment{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		recorder: rec,
		session:  installer.NewSession(m, rec, logger),
		format:   format,
	}, nil
}

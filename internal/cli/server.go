package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/criteo/install-registry/internal/auth"
	"github.com/criteo/install-registry/internal/server"
	"github.com/criteo/install-registry/internal/server/handlers"
)

// newServerCommand creates the server command
func newServerCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the registry HTTP server",
		Long: `Start the HTTP server exposing the installation tree: product and component
listings, eligibility checks, discover, install and uninstall.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.String("host", "", "Listen address (or UMREG_SERVER_HOST)")
	flags.Int("port", 0, "Listen port (or UMREG_SERVER_PORT)")
	flags.String("auth-type", "", "Authentication for operations: none or basic (or UMREG_AUTH_TYPE)")
	flags.String("users-file", "", "Users file for basic auth (or UMREG_AUTH_USERS_FILE)")
	_ = opts.v.BindPFlag("server.host", flags.Lookup("host"))
	_ = opts.v.BindPFlag("server.port", flags.Lookup("port"))
	_ = opts.v.BindPFlag("auth.type", flags.Lookup("auth-type"))
	_ = opts.v.BindPFlag("auth.users_file", flags.Lookup("users-file"))
	return cmd
}

func runServer(cmd *cobra.Command, opts *rootOptions) error {
	// server logs go to stdout like any service
	env, err := opts.openEnvironment(os.Stdout)
	if err != nil {
		return err
	}
	cfg, logger := env.cfg, env.logger

	logger.Info("Server starting",
		"version", cmd.Root().Version,
		"port", cfg.Server.Port,
		"config_file", opts.configFile,
		"install_url", cfg.Install.URL,
		"storage_uri", cfg.Storage.URI,
		"auth_type", cfg.Auth.Type)

	var authenticator auth.Authenticator
	switch cfg.Auth.Type {
	case "none":
		authenticator = auth.NewNoAuth()
		logger.Info("Authentication disabled (auth.type=none)")
	case "basic":
		authenticator, err = auth.NewBasicAuth(cfg.Auth.UsersFile, logger)
		if err != nil {
			logger.Error("Failed to initialize basic auth",
				"error", err,
				"users_file", cfg.Auth.UsersFile)
			env.Close()
			return fmt.Errorf("failed to initialize basic auth: %w", err)
		}
	default:
		env.Close()
		return fmt.Errorf("unsupported auth type: %s", cfg.Auth.Type)
	}

	// load the tree up front so a broken tree fails fast
	if err := env.session.Refresh(cmd.Context()); err != nil {
		env.Close()
		return fmt.Errorf("failed to load installation tree: %w", err)
	}

	srv := server.NewServer(cfg, logger, env.store, authenticator)

	registryHandler := handlers.NewRegistryHandler(env.session, logger)
	operationsHandler := handlers.NewOperationsHandler(env.session, logger)
	healthHandler := handlers.NewHealthHandler(env.session, logger)
	whoamiHandler := handlers.NewWhoamiHandler(authenticator, env.session, logger)

	srv.SetHandlers(server.HandlerSet{
		Health:         healthHandler.GetHealth,
		Metrics:        env.recorder.Handler(),
		Whoami:         whoamiHandler.GetWhoami,
		ListProducts:   registryHandler.ListProducts,
		GetProduct:     registryHandler.GetProduct,
		ListComponents: registryHandler.ListComponents,
		GetComponent:   registryHandler.GetComponent,
		ListDangling:   registryHandler.ListDangling,
		GetActivation:  registryHandler.GetActivation,
		Check:          operationsHandler.Check,
		Discover:       operationsHandler.Discover,
		Install:        operationsHandler.Install,
		Uninstall:      operationsHandler.Uninstall,
	})

	logger.Info("Server ready to accept connections",
		"address", fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port))

	// Start closes the store on shutdown
	if err := srv.Start(); err != nil {
		logger.Error("Server stopped with error", "error", err)
		return err
	}

	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sqlgate/sqlgate"
	"github.com/sqlgate/sqlgate/internal/api"
	"github.com/sqlgate/sqlgate/internal/config"
	"github.com/sqlgate/sqlgate/internal/credentials"
	"github.com/sqlgate/sqlgate/internal/mask"
	"github.com/sqlgate/sqlgate/internal/store"
)

type serveFlags struct {
	envFile string
	noInput bool
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	sf := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST and MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, flags.path(), sf)
		},
	}
	cmd.Flags().StringVar(&sf.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.Flags().BoolVar(&sf.noInput, "no-input", false, "never prompt for the database password")
	return cmd
}

func runServe(ctx context.Context, configPath string, sf *serveFlags) error {
	// 1. Environment and config
	if err := config.LoadDotEnv(sf.envFile); err != nil {
		return err
	}
	cfg, err := loadServerConfig(configPath, os.Getenv)
	if err != nil {
		return err
	}

	// 2. Logger
	logger, closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	// 3. Connection string
	driver, dsn, source, err := resolveDSN(cfg, newResolver(cfg, !sf.noInput, logger))
	if err != nil {
		return err
	}
	logger.Info().
		Str("driver", string(driver)).
		Str("dsn", mask.String(dsn)).
		Str("password_source", string(source)).
		Msg("resolved connection")

	// 4. Gateway
	var opts []sqlgate.Option
	if len(cfg.ServerHooks.BeforeQuery) > 0 || len(cfg.ServerHooks.AfterQuery) > 0 {
		opts = append(opts, sqlgate.WithServerHooks(cfg.ServerHooks))
	}
	g, err := sqlgate.New(ctx, driver, dsn, cfg.Config, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}
	defer g.Close()

	// The REST health endpoint reports a broken database; startup does not
	// fail on it.
	if err := g.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("database connection test failed")
	} else {
		logger.Info().Msg("database connection test successful")
	}

	// 5. HTTP server
	var mcpHandler http.Handler
	if cfg.Server.MCPEnabled {
		mcpHandler = newMCPHandler(g, logger)
	}
	router := api.NewRouter(g, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MCP:            mcpHandler,
		Version:        Version,
	}, logger)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
	return serveUntilDone(ctx, newHTTPServer(ctx, addr, router), shutdownTimeout, logger)
}

// newHTTPServer builds the server for handler. Request contexts keep ctx's
// values but not its cancellation, so Shutdown can drain them.
func newHTTPServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
}

// serveUntilDone runs srv until it fails or ctx is cancelled, then drains
// in-flight requests for at most timeout.
func serveUntilDone(ctx context.Context, srv *http.Server, timeout time.Duration, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting sqlgate server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, timeout)
		defer cancel()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newMCPHandler(g *sqlgate.Gateway, logger zerolog.Logger) http.Handler {
	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		logger.Info().
			Str("client_name", req.Params.ClientInfo.Name).
			Str("client_version", req.Params.ClientInfo.Version).
			Msg("MCP client connected")
	})
	mcpServer := server.NewMCPServer("sqlgate", Version,
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)
	sqlgate.RegisterMCPTools(mcpServer, g)
	return sqlgate.PreserveParamNumbers(server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
	))
}

// loadServerConfig reads the config file (or defaults when it is missing),
// applies environment overrides and validates the result.
func loadServerConfig(path string, getenv func(string) string) (*sqlgate.ServerConfig, error) {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// newResolver builds a password resolver for cfg. The keyring is only
// opened when a password is actually needed.
func newResolver(cfg *sqlgate.ServerConfig, prompt bool, logger zerolog.Logger) credentials.Resolver {
	r := credentials.Resolver{Getenv: os.Getenv}
	if cfg.Connection.DSN != "" || cfg.Connection.Driver == string(sqlgate.DriverSQLite) {
		return r
	}
	if ring, err := credentials.Open(); err == nil {
		r.Store = ring
	} else {
		logger.Debug().Err(err).Msg("keyring unavailable")
	}
	if prompt {
		r.Prompt = credentials.TerminalPrompt
	}
	return r
}

// resolveDSN returns the driver and connection string for cfg. An explicit
// DSN wins; otherwise the password comes from the resolver. SQLite needs none.
func resolveDSN(cfg *sqlgate.ServerConfig, r credentials.Resolver) (sqlgate.Driver, string, credentials.Source, error) {
	c := cfg.Connection
	driver, err := sqlgate.ParseDriver(c.Driver)
	if err != nil {
		return "", "", credentials.SourceNone, err
	}
	if c.DSN != "" {
		return driver, c.DSN, credentials.SourceNone, nil
	}

	source := credentials.SourceNone
	var password string
	if driver != sqlgate.DriverSQLite {
		password, source, err = r.Resolve(c.User, c.Host)
		if err != nil {
			return "", "", credentials.SourceNone, err
		}
	}
	dsn, err := store.BuildDSN(store.ConnectionOptions{
		Driver:   driver,
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: password,
		Database: c.DBName,
		SSLMode:  c.SSLMode,
	})
	if err != nil {
		return "", "", credentials.SourceNone, err
	}
	return driver, dsn, source, nil
}

// setupLogger builds the zerolog logger described by cfg. The returned func
// closes the log file, if one was opened.
func setupLogger(cfg sqlgate.LoggingConfig) (zerolog.Logger, func() error, error) {
	noop := func() error { return nil }

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), noop, fmt.Errorf("logging.level: %w", err)
		}
		level = l
	}

	var output io.Writer
	closer := noop
	switch cfg.Output {
	case "", "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), noop, fmt.Errorf("logging.output: %w", err)
		}
		output = f
		closer = f.Close
	}

	if cfg.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}
	return zerolog.New(output).Level(level).With().Timestamp().Logger(), closer, nil
}

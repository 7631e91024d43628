package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sqlgate/sqlgate"
	"github.com/sqlgate/sqlgate/internal/config"
)

func newDoctorCmd(flags *globalFlags) *cobra.Command {
	var connect bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the configuration and print client snippets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			useColor := isTTY(os.Stderr.Fd())
			return doctor(cmd.Context(), os.Stderr, useColor, flags.path(), connect)
		},
	}
	cmd.Flags().BoolVar(&connect, "connect", false, "also open a connection and ping the database")
	return cmd
}

func doctor(ctx context.Context, w io.Writer, useColor bool, configPath string, connect bool) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "sqlgate %s\n\n", Version)

	cfg, ok := doctorValidateConfig(w, useColor, configPath)
	if ok && connect {
		ok = doctorConnect(ctx, w, useColor, cfg)
	}
	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'sqlgate doctor' again.")
		return nil
	}

	fmt.Fprintln(w)
	printClientSnippets(w, useColor, cfg)
	return nil
}

// doctorValidateConfig loads and validates the config file, printing one
// line per check. Returns the config and whether every check passed.
func doctorValidateConfig(w io.Writer, useColor bool, configPath string) (*sqlgate.ServerConfig, bool) {
	cfg, err := config.Load(configPath)
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file loads (%s): %v", configPath, err))
		return nil, false
	}
	printCheck(w, useColor, true, fmt.Sprintf("Config file loads (%s)", configPath))

	allPassed := true
	if err := config.ApplyEnv(cfg, os.Getenv); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Environment overrides: %v", err))
		allPassed = false
	}
	if err := config.Validate(cfg); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config is valid: %v", err))
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("Config is valid (driver %s, port %d)", cfg.Connection.Driver, cfg.Server.Port))
	}

	switch {
	case cfg.Connection.DSN != "":
		printCheck(w, useColor, true, "connection.dsn is set")
	case cfg.Connection.DBName == "":
		printCheck(w, useColor, false, "connection.dbname is set")
		allPassed = false
	default:
		printCheck(w, useColor, true, fmt.Sprintf("connection.dbname is set (%s)", cfg.Connection.DBName))
	}

	type namedPattern struct{ name, pattern string }
	var patterns []namedPattern
	for i, r := range cfg.ErrorPrompts {
		patterns = append(patterns, namedPattern{fmt.Sprintf("error_prompts[%d]", i), r.Pattern})
	}
	for i, r := range cfg.Sanitization {
		patterns = append(patterns, namedPattern{fmt.Sprintf("sanitization[%d]", i), r.Pattern})
	}
	for i, r := range cfg.Query.TimeoutRules {
		patterns = append(patterns, namedPattern{fmt.Sprintf("query.timeout_rules[%d]", i), r.Pattern})
	}
	for i, h := range cfg.ServerHooks.BeforeQuery {
		patterns = append(patterns, namedPattern{fmt.Sprintf("server_hooks.before_query[%d]", i), h.Pattern})
	}
	for i, h := range cfg.ServerHooks.AfterQuery {
		patterns = append(patterns, namedPattern{fmt.Sprintf("server_hooks.after_query[%d]", i), h.Pattern})
	}
	regexOK := true
	for _, p := range patterns {
		if _, err := regexp.Compile(p.pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("%s regex compiles: %v", p.name, err))
			regexOK = false
		}
	}
	if regexOK {
		printCheck(w, useColor, true, "All regex patterns compile")
	} else {
		allPassed = false
	}

	if len(cfg.Denylist) > 0 {
		printCheck(w, useColor, true, fmt.Sprintf("Custom denylist (%d phrases)", len(cfg.Denylist)))
	} else {
		printCheck(w, useColor, true, "Built-in denylist")
	}
	return cfg, allPassed
}

// doctorConnect opens a gateway without prompting and pings the database.
func doctorConnect(ctx context.Context, w io.Writer, useColor bool, cfg *sqlgate.ServerConfig) bool {
	driver, dsn, source, err := resolveDSN(cfg, newResolver(cfg, false, zerolog.Nop()))
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Connection string builds: %v", err))
		return false
	}
	printCheck(w, useColor, true, fmt.Sprintf("Connection string builds (password from %s)", source))

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	g, err := sqlgate.New(ctx, driver, dsn, cfg.Config, zerolog.Nop())
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Gateway starts: %v", err))
		return false
	}
	defer g.Close()
	if err := g.Ping(ctx); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database reachable: %v", err))
		return false
	}
	printCheck(w, useColor, true, "Database reachable")
	return true
}

// printCheck prints a colored ✓ or ✗ check line.
func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	mark, color := "✓", "\033[32m"
	if !pass {
		mark, color = "✗", "\033[31m"
	}
	if useColor {
		fmt.Fprintf(w, "  %s%s\033[0m %s\n", color, mark, msg)
		return
	}
	fmt.Fprintf(w, "  %s %s\n", mark, msg)
}

// printClientSnippets prints REST and MCP connection examples.
func printClientSnippets(w io.Writer, useColor bool, cfg *sqlgate.ServerConfig) {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	base := "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))

	heading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "\033[1;32m%s\033[0m\n", title)
		} else {
			fmt.Fprintln(w, title)
		}
	}
	subheading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "  \033[1m%s\033[0m\n", title)
		} else {
			fmt.Fprintf(w, "  %s\n", title)
		}
	}

	heading("REST API")
	fmt.Fprintln(w)
	subheading("Execute a query")
	fmt.Fprintf(w, "    curl -s -X POST %s/api/execute \\\n", base)
	fmt.Fprintf(w, "      -H 'Content-Type: application/json' \\\n")
	fmt.Fprintf(w, "      -d '{\"query\": \"SELECT * FROM employees LIMIT 5\"}'\n\n")
	subheading("Health")
	fmt.Fprintf(w, "    curl -s %s/api/health\n\n", base)

	if !cfg.Server.MCPEnabled {
		subheading("MCP is disabled (server.mcp_enabled: false)")
		return
	}
	url := base + "/mcp"

	heading("MCP Clients")
	fmt.Fprintln(w)
	subheading("Claude Code")
	fmt.Fprintf(w, "    claude mcp add --transport http sqlgate %s\n\n", url)
	subheading("Cursor (.cursor/mcp.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "sqlgate": {
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)
	subheading("Gemini CLI (~/.gemini/settings.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "sqlgate": {
        "httpUrl": "%s"
      }
    }
  }
`, url)
}

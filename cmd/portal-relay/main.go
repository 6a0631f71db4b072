// Command portal-relay serves the tool relay used by the portal dashboards.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"portal-relay/internal/config"
	"portal-relay/internal/logger"
	"portal-relay/internal/metrics"
	"portal-relay/internal/sam"
	"portal-relay/internal/server"
	"portal-relay/internal/sqlexec"
	"portal-relay/internal/websearch"
)

var (
	v          = config.New()
	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:           "portal-relay",
	Short:         "portal-relay - tool relay for the portal dashboards",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve [port]",
	Short: "Serve GET /status and POST /execute (default port 8000)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print every tool with its parameter schema",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Optional yaml config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file")
	serveCmd.Flags().String("port", "", "Listen port (env PORT)")
	serveCmd.Flags().String("type", "", "Integration type: mysql or search (env RELAY_TYPE)")
	_ = v.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = v.BindPFlag("relay.type", serveCmd.Flags().Lookup("type"))
	rootCmd.AddCommand(serveCmd, toolsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(args []string) (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	if len(args) == 1 {
		v.Set("server.port", args[0])
	}
	return config.Load(v, configFile)
}

func runServe(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", zap.Error(err))
		return err
	}
	kinds, deps, err := integration(cfg, log)
	if err != nil {
		log.Error("build integration", zap.Error(err))
		return err
	}
	registry, err := server.NewRegistry(kinds, deps)
	if err != nil {
		log.Error("build tool registry", zap.Error(err))
		return err
	}
	if cfg.Server.Token == "" {
		log.Warn("RELAY_TOKEN not set; /execute is open. Set RELAY_TOKEN to secure.")
	}

	srv := server.New(server.Config{Type: cfg.Relay.Type, Token: cfg.Server.Token}, registry, log)

	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			log.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Error("metrics listener", zap.Error(err))
			}
		}()
	}

	addr := ":" + cfg.Server.Port
	log.Info("starting relay",
		zap.String("addr", addr),
		zap.String("type", cfg.Relay.Type),
		zap.Strings("tools", registry.Names()),
	)
	if cfg.Server.TLSCertFile != "" {
		log.Info("TLS enabled: using provided certificate and key")
		err = http.ListenAndServeTLS(addr, cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile, srv.Router())
	} else {
		err = http.ListenAndServe(addr, srv.Router())
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", zap.Error(err))
		return err
	}
	return nil
}

// integration picks the tools and downstream clients for the configured relay type.
func integration(cfg *config.Config, log *zap.Logger) ([]server.Kind, server.Deps, error) {
	switch cfg.Relay.Type {
	case config.TypeMySQL:
		db, err := sqlexec.NewDB(sqlexec.Options{
			Driver:   cfg.Database.Driver,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Name,
			DSN:      cfg.Database.DSN,
		})
		if err != nil {
			return nil, server.Deps{}, err
		}
		log.Info("database configured", zap.String("driver", db.Driver()))
		if cfg.Database.DSN == "" && cfg.Database.Password == "" {
			log.Warn("MYSQL_PASSWORD is empty")
		}
		return []server.Kind{server.KindMySQLQuery}, server.Deps{DB: db}, nil
	case config.TypeSearch:
		kinds := []server.Kind{server.KindWebSearch}
		deps := server.Deps{Search: websearch.New(cfg.Search.BaseURL, cfg.Search.APIKey, nil)}
		if cfg.SAM.APIKey != "" {
			kinds = append(kinds, server.KindSAMSearch)
			deps.SAM = sam.New(cfg.SAM.BaseURL, cfg.SAM.APIKey, nil)
		} else {
			log.Info("SAM_API_KEY not set; sam_search is disabled")
		}
		return kinds, deps, nil
	default:
		return nil, server.Deps{}, fmt.Errorf("unknown relay type %q", cfg.Relay.Type)
	}
}

type toolDoc struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

// writeTools prints every known tool. Downstream clients are never dialed.
func writeTools(w io.Writer) error {
	registry, err := server.NewRegistry(server.AllKinds, server.Deps{
		DB:     &sqlexec.DB{},
		Search: websearch.New("", "", nil),
		SAM:    sam.New("", "", nil),
	})
	if err != nil {
		return err
	}
	docs := make([]toolDoc, 0, len(registry.Tools()))
	for _, t := range registry.Tools() {
		docs = append(docs, toolDoc{Name: string(t.Kind()), Description: t.Description(), InputSchema: t.Schema()})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"tools": docs})
}

func runTools(cmd *cobra.Command, _ []string) error {
	return writeTools(cmd.OutOrStdout())
}

// ABOUTME: Gateway orchestrator that wires store, agent, auth and rate limiting to HTTP
// ABOUTME: Owns the HTTP server lifecycle, optional tailnet listener, and health endpoints

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/minecraft-ai/internal/agent"
	"github.com/2389/minecraft-ai/internal/auth"
	"github.com/2389/minecraft-ai/internal/config"
	"github.com/2389/minecraft-ai/internal/conversation"
	"github.com/2389/minecraft-ai/internal/mcp"
	"github.com/2389/minecraft-ai/internal/ratelimit"
	"github.com/2389/minecraft-ai/internal/store"
)

// Version is reported by the MCP server and the version subcommand.
var Version = "dev"

// Gateway orchestrates the minecraft-ai server components.
type Gateway struct {
	config       *config.Config
	store        store.Store
	conversation *conversation.Service
	keys         *auth.KeySet
	limiter      *ratelimit.Limiter
	mcpServer    *mcp.Server
	httpServer   *http.Server
	tsnetServer  *tsnet.Server
	logger       *slog.Logger
}

// initStore opens the configured conversation store.
func initStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		s, err := store.NewPostgresStore(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("initializing postgres store: %w", err)
		}
		return s, nil
	default:
		s, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("initializing store: %w", err)
		}
		return s, nil
	}
}

// New creates a new Gateway instance with the given configuration.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := initStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	invoker, err := agent.New(cfg.Agent, logger.With("component", "agent"))
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating agent: %w", err)
	}

	gw, err := newGateway(cfg, s, invoker, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

// newGateway assembles the HTTP surface around an already opened store and invoker.
func newGateway(cfg *config.Config, s store.Store, invoker agent.Invoker, logger *slog.Logger) (*Gateway, error) {
	keys, err := auth.NewKeySet(cfg.Auth.APIKeys)
	if err != nil {
		return nil, fmt.Errorf("loading API keys: %w", err)
	}

	gw := &Gateway{
		config:       cfg,
		store:        s,
		conversation: conversation.New(s, invoker, logger),
		keys:         keys,
		logger:       logger.With("component", "gateway"),
	}

	if !cfg.RateLimit.Disabled {
		gw.limiter = ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Period, cfg.RateLimit.MaxKeys)
	}

	if cfg.MCP.Enabled {
		gw.mcpServer, err = mcp.NewServer(mcp.Config{
			Service: gw.conversation,
			Logger:  logger.With("component", "mcp"),
			Version: Version,
		})
		if err != nil {
			gw.closeOptionalComponents()
			return nil, fmt.Errorf("creating MCP server: %w", err)
		}
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.routes(logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	gw.logger.Info("gateway configured",
		"api_keys", keys.Len(),
		"agent_configured", gw.conversation.AgentConfigured(),
		"rate_limit", !cfg.RateLimit.Disabled,
		"mcp", cfg.MCP.Enabled,
	)
	return gw, nil
}

// routes builds the HTTP mux. Health endpoints are public; everything else
// requires an API key and then passes the rate limiter.
func (g *Gateway) routes(logger *slog.Logger) http.Handler {
	authn := auth.APIKeyMiddleware(g.keys, logger.With("component", "auth"))
	protect := func(h http.Handler) http.Handler {
		if g.limiter != nil {
			h = ratelimit.Middleware(g.limiter, func(r *http.Request) string {
				return auth.OwnerFromContext(r.Context())
			}, logger.With("component", "ratelimit"))(h)
		}
		return authn(noteKey(h))
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)

	mux.Handle("/chats", protect(http.HandlerFunc(g.handleChats)))
	mux.Handle("/chats/", protect(http.HandlerFunc(g.handleChatRoutes)))
	mux.Handle("/chat", protect(http.HandlerFunc(g.handleChat)))

	if g.mcpServer != nil {
		mux.Handle("/mcp", protect(g.mcpServer.Handler()))
	}

	if g.config.Logging.Requests {
		return logRequests(logger.With("component", "http"), mux)
	}
	return mux
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// setupTCPListener creates the standard TCP listener.
func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr,
			)
		}
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		if ctx.Err() != nil {
			g.logger.Info("context canceled, initiating shutdown")
		}
		return g.gracefulShutdown()
	})

	return eg.Wait()
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "minecraft-ai", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable (get one at https://login.tailscale.com/admin/settings/keys)")
	}
	return authKey, nil
}

// setupTailscaleListener starts a tsnet node and returns its HTTP listener.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}

	g.logTailscaleStatus(tsCfg.Hostname, status)

	return g.createTailscaleHTTPListener(tsCfg)
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// createTailscaleHTTPListener creates the appropriate HTTP listener based on config.
func (g *Gateway) createTailscaleHTTPListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return g.createTailscaleTLSListener()
	default:
		ln, err := g.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// createTailscaleTLSListener creates a TLS listener using Tailscale's auto-provisioned certs.
func (g *Gateway) createTailscaleTLSListener() (net.Listener, error) {
	g.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := g.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeOptionalComponents closes optional components that may be nil.
func (g *Gateway) closeOptionalComponents() {
	if g.limiter != nil {
		g.limiter.Close()
	}
	if g.mcpServer != nil {
		g.mcpServer.Close()
	}
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "store close", g.store.Close())

	g.closeOptionalComponents()

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK when the store answers and an agent is configured.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := g.store.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	if !g.conversation.AgentConfigured() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("agent not configured"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luciancaetano/sessnet"
	"github.com/luciancaetano/sessnet/internal/logger"
	"github.com/luciancaetano/sessnet/operation"
	"github.com/luciancaetano/sessnet/server"
)

// echoOperation answers with the caller's parameters and user id at key 0.
const echoOperation uint16 = 1

type serveOptions struct {
	configPath string
	debug      bool
	tcp        string
	tls        string
	udp        string
	http       string
	https      string
	certFile   string
	keyFile    string
	secret     string
	issuer     string
	noLimit    bool
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a server with an echo operation",
		Long: `Run a server on the configured listeners.

Request operation 1 echoes its parameters back with the caller's user id
at key 0. Flags override values read from --config.

Examples:
  sessnet serve --tcp :7000 --http :8080
  sessnet serve --config sessnet.json --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "JSON configuration file")
	f.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	f.StringVar(&opts.tcp, "tcp", "", "TCP listen address")
	f.StringVar(&opts.tls, "tls", "", "TLS listen address")
	f.StringVar(&opts.udp, "udp", "", "UDP listen address")
	f.StringVar(&opts.http, "http", "", "HTTP listen address (WebSocket, RPC and metrics)")
	f.StringVar(&opts.https, "https", "", "HTTPS listen address")
	f.StringVar(&opts.certFile, "cert", "", "TLS certificate file")
	f.StringVar(&opts.keyFile, "key", "", "TLS key file")
	f.StringVar(&opts.secret, "secret", "", "HS256 secret for handshake tokens")
	f.StringVar(&opts.issuer, "issuer", "", "Required token issuer")
	f.BoolVar(&opts.noLimit, "no-rate-limit", false, "Disable inbound rate limiting")

	return cmd
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	cfg, err := loadServeConfig(cmd, opts)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.DebugMode)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	srv := server.New(server.Options{
		Config:      cfg,
		Logger:      log,
		CheckOrigin: server.AllOrigins(),
		OnConnect: func(s sessnet.Session) {
			log.Debug("client connected", zap.Uint64("connectionId", s.ConnectionID()))
		},
		OnDisconnect: func(s sessnet.Session) {
			log.Debug("client disconnected", zap.Uint64("connectionId", s.ConnectionID()))
		},
	})
	if err := srv.RegisterRequestHandler(echoOperation, echo); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printBanner()
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	for _, name := range []string{server.ListenerTCP, server.ListenerTLS, server.ListenerUDP, server.ListenerHTTP, server.ListenerHTTPS} {
		if addr := srv.Addr(name); addr != nil {
			success("%-5s listening on %s", name, addr)
		}
	}
	if cfg.Auth.Secret == "" {
		warn("No --secret set, every handshake binds an anonymous peer")
	}
	info("Press Ctrl+C to stop")

	<-ctx.Done()
	fmt.Println()
	info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	success("Server stopped")
	return nil
}

func loadServeConfig(cmd *cobra.Command, opts serveOptions) (*server.Config, error) {
	cfg := server.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := server.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	f := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if f.Changed(name) {
			*dst = v
		}
	}
	set("tcp", &cfg.Listeners.TCP, opts.tcp)
	set("tls", &cfg.Listeners.TLS, opts.tls)
	set("udp", &cfg.Listeners.UDP, opts.udp)
	set("http", &cfg.Listeners.HTTP, opts.http)
	set("https", &cfg.Listeners.HTTPS, opts.https)
	set("cert", &cfg.Listeners.CertFile, opts.certFile)
	set("key", &cfg.Listeners.KeyFile, opts.keyFile)
	set("secret", &cfg.Auth.Secret, opts.secret)
	set("issuer", &cfg.Auth.Issuer, opts.issuer)
	if opts.debug {
		cfg.DebugMode = true
	}
	if opts.noLimit {
		cfg.RateLimit = *server.NoRateLimit()
	}

	l := cfg.Listeners
	if l.TCP == "" && l.TLS == "" && l.UDP == "" && l.HTTP == "" && l.HTTPS == "" {
		return nil, fmt.Errorf("no listener configured, set --tcp, --tls, --udp, --http or --https")
	}
	return cfg, cfg.Validate()
}

func echo(_ context.Context, req *operation.Request, _ operation.SendParameters, peer *sessnet.UserPeer, _ sessnet.Session) (*operation.Response, error) {
	params := operation.Parameters{}
	for k, v := range req.Parameters {
		params[k] = v
	}
	params[0] = []byte(peer.UserID)
	return &operation.Response{Parameters: params}, nil
}

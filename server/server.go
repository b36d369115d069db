// Package server is the public entry point for running a sessnet server.
package server

import (
	"net/http"
	"time"

	"github.com/luciancaetano/sessnet"
	"github.com/luciancaetano/sessnet/internal/auth"
	"github.com/luciancaetano/sessnet/internal/config"
	"github.com/luciancaetano/sessnet/internal/server"
)

type Config = config.Config
type Listeners = config.Listeners
type SessionConfig = config.Session
type RateLimitConfig = config.RateLimitConfig
type Options = server.Options
type Server = server.Server
type CheckOriginFn = server.CheckOriginFn
type OnConnectFn = sessnet.OnConnectFn
type OnDisconnectFn = sessnet.OnDisconnectFn

// Listener names accepted by Server.Addr.
const (
	ListenerTCP   = server.ListenerTCP
	ListenerTLS   = server.ListenerTLS
	ListenerUDP   = server.ListenerUDP
	ListenerHTTP  = server.ListenerHTTP
	ListenerHTTPS = server.ListenerHTTPS
)

// New creates a server for opts. opts.Config defaults to DefaultConfig(),
// which has every listener disabled.
//
// Example:
//
//	cfg := server.DefaultConfig()
//	cfg.Listeners.TCP = ":7000"
//	cfg.Listeners.HTTP = ":8080"
//
//	srv := server.New(server.Options{
//	    Config:      cfg,
//	    CheckOrigin: server.AllOrigins(),
//	    OnConnect: func(s sessnet.Session) {
//	        log.Printf("Client connected: %d", s.ConnectionID())
//	    },
//	})
func New(opts Options) *Server {
	return server.New(opts)
}

// NewConfig returns the default configuration with the TCP and HTTP
// listeners set and the given rate limit. An empty address leaves that
// listener disabled and a nil rateLimit keeps the default.
func NewConfig(tcpAddr, httpAddr string, rateLimit *RateLimitConfig) *Config {
	cfg := config.Default()
	cfg.Listeners.TCP = tcpAddr
	cfg.Listeners.HTTP = httpAddr
	if rateLimit != nil {
		cfg.RateLimit = *rateLimit
	}
	return cfg
}

// DefaultConfig returns a configuration with every listener disabled.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig reads a JSON configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// AllOrigins returns the default checkOrigin function that allows all origins
func AllOrigins() CheckOriginFn {
	return func(r *http.Request) bool {
		return true
	}
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return config.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return config.NoRateLimit()
}

// TokenIssuer mints and verifies HS256 handshake tokens.
type TokenIssuer interface {
	sessnet.TokenVerifier
	Mint(payload sessnet.TokenPayload, ttl time.Duration) (string, error)
}

// NewJWTVerifier returns an HS256 token verifier and issuer. When issuer is
// set, tokens must carry it.
func NewJWTVerifier(secret []byte, issuer string) TokenIssuer {
	return auth.NewJWTVerifier(secret, issuer)
}

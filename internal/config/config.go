// Package config holds the server configuration and its JSON loader.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/luciancaetano/sessnet/operation"
)

// RateLimitConfig defines rate limiting configuration for sessions
type RateLimitConfig struct {
	// MessagesPerSecond defines how many frames a session can send per second
	MessagesPerSecond rate.Limit `json:"messages_per_second"`
	// Burst defines the maximum burst size (token bucket capacity)
	Burst int `json:"burst"`
	// Enabled determines if rate limiting is active
	Enabled bool `json:"enabled"`
}

// DefaultRateLimitConfig returns the default rate limit configuration
// Allows 100 messages per second with burst of 200
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 100,
		Burst:             200,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled: false,
	}
}

// Listeners are the addresses to bind. An empty address disables the listener.
type Listeners struct {
	TCP   string `json:"tcp"`
	TLS   string `json:"tls"`
	UDP   string `json:"udp"`
	HTTP  string `json:"http"`
	HTTPS string `json:"https"`

	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`

	WebSocketPath string `json:"websocket_path"`
	RPCPath       string `json:"rpc_path"`
	MetricsPath   string `json:"metrics_path"`
}

// Session holds per-connection limits and timeouts.
type Session struct {
	MaxTCPSessionsPerUser       int `json:"max_tcp_sessions_per_user"`
	MaxWebSocketSessionsPerUser int `json:"max_websocket_sessions_per_user"`
	MaxUDPSessionsPerUser       int `json:"max_udp_sessions_per_user"`

	HandshakeTimeoutInSeconds int `json:"handshake_timeout_in_seconds"`
	IdleTimeoutInSeconds      int `json:"idle_timeout_in_seconds"`
	SweepIntervalInSeconds    int `json:"sweep_interval_in_seconds"`

	MaxMessageSize  int `json:"max_message_size"`
	SendQueueLength int `json:"send_queue_length"`
	WorkerPoolSize  int `json:"worker_pool_size"`
}

// Protocol selects the default codec and cipher for outbound frames.
type Protocol struct {
	DefaultProtocol operation.ProtocolType `json:"default_protocol"`
	DefaultCrypto   operation.CryptoType   `json:"default_crypto"`
	CryptoSalt      string                 `json:"crypto_salt"`
}

// UserPeers bounds the identities kept after their last session closes.
type UserPeers struct {
	Size         int `json:"size"`
	TTLInSeconds int `json:"ttl_in_seconds"`
}

// Auth configures HS256 token verification. An empty secret disables it and
// every handshake binds an anonymous peer.
type Auth struct {
	Secret string `json:"secret"`
	Issuer string `json:"issuer"`
}

// Config is the full server configuration.
type Config struct {
	Listeners Listeners       `json:"listeners"`
	Session   Session         `json:"session"`
	Protocol  Protocol        `json:"protocol"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	UserPeers UserPeers       `json:"user_peers"`
	Auth      Auth            `json:"auth"`
	DebugMode bool            `json:"debug_mode"`
}

// Default returns a configuration with every listener disabled.
func Default() *Config {
	return &Config{
		Listeners: Listeners{
			WebSocketPath: "/ws",
			RPCPath:       "/rpc",
			MetricsPath:   "/metrics",
		},
		Session: Session{
			MaxTCPSessionsPerUser:       1,
			MaxWebSocketSessionsPerUser: 1,
			MaxUDPSessionsPerUser:       1,
			HandshakeTimeoutInSeconds:   10,
			IdleTimeoutInSeconds:        120,
			SweepIntervalInSeconds:      5,
			MaxMessageSize:              1024 * 1024,
			SendQueueLength:             256,
			WorkerPoolSize:              64,
		},
		Protocol: Protocol{
			DefaultProtocol: operation.ProtocolSimplePack,
			DefaultCrypto:   operation.CryptoAESGCM,
		},
		RateLimit: *DefaultRateLimitConfig(),
		UserPeers: UserPeers{
			Size:         100_000,
			TTLInSeconds: 3600,
		},
	}
}

// Load reads a JSON file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("the configuration file %s does not contain valid JSON: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if (c.Listeners.TLS != "" || c.Listeners.HTTPS != "") && (c.Listeners.CertFile == "" || c.Listeners.KeyFile == "") {
		return errors.New("config: tls and https listeners need cert_file and key_file")
	}
	if c.Session.MaxMessageSize <= 0 {
		return errors.New("config: max_message_size must be positive")
	}
	if c.Session.SendQueueLength <= 0 {
		return errors.New("config: send_queue_length must be positive")
	}
	if c.Session.WorkerPoolSize <= 0 {
		return errors.New("config: worker_pool_size must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.MessagesPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return errors.New("config: rate_limit needs positive messages_per_second and burst when enabled")
	}
	switch c.Protocol.DefaultProtocol {
	case operation.ProtocolSimplePack, operation.ProtocolMessagePack:
	default:
		return fmt.Errorf("config: unknown default_protocol %d", c.Protocol.DefaultProtocol)
	}
	switch c.Protocol.DefaultCrypto {
	case operation.CryptoAESGCM, operation.CryptoChaCha20Poly1305:
	default:
		return fmt.Errorf("config: unknown default_crypto %d", c.Protocol.DefaultCrypto)
	}
	return nil
}

// MaxSessionsPerUser returns the cap for a transport family. HTTP-as-RPC
// sessions are never capped and report -1.
func (s Session) MaxSessionsPerUser(f operation.Family) int {
	switch f {
	case operation.FamilyTCP:
		return s.MaxTCPSessionsPerUser
	case operation.FamilyWebSocket:
		return s.MaxWebSocketSessionsPerUser
	case operation.FamilyUDP:
		return s.MaxUDPSessionsPerUser
	default:
		return -1
	}
}

// HandshakeTimeout returns the handshake timeout; zero disables it.
func (s Session) HandshakeTimeout() time.Duration {
	return time.Duration(s.HandshakeTimeoutInSeconds) * time.Second
}

// IdleTimeout returns the idle timeout; zero disables it.
func (s Session) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutInSeconds) * time.Second
}

// SweepInterval returns the housekeeping period, at least one second.
func (s Session) SweepInterval() time.Duration {
	if s.SweepIntervalInSeconds <= 0 {
		return time.Second
	}
	return time.Duration(s.SweepIntervalInSeconds) * time.Second
}

// TTL returns the identity directory entry lifetime; zero means no expiry.
func (u UserPeers) TTL() time.Duration {
	return time.Duration(u.TTLInSeconds) * time.Second
}

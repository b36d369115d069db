package server

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// listen binds every configured listener. On error the listeners bound so
// far stay recorded so the caller can close them.
func (s *Server) listen() error {
	l := s.cfg.Listeners

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = nil
	s.httpServers = nil
	s.udpConn = nil
	s.addrs = make(map[string]net.Addr)

	var tlsConfig *tls.Config
	if l.TLS != "" || l.HTTPS != "" {
		var err error
		if tlsConfig, err = s.loadTLSConfig(); err != nil {
			return err
		}
	}

	if l.TCP != "" {
		ln, err := net.Listen("tcp", l.TCP)
		if err != nil {
			return fmt.Errorf("listen tcp %s: %w", l.TCP, err)
		}
		s.listeners = append(s.listeners, ln)
		s.addrs[ListenerTCP] = ln.Addr()
	}
	if l.TLS != "" {
		ln, err := tls.Listen("tcp", l.TLS, tlsConfig)
		if err != nil {
			return fmt.Errorf("listen tls %s: %w", l.TLS, err)
		}
		s.listeners = append(s.listeners, ln)
		s.addrs[ListenerTLS] = ln.Addr()
	}
	if l.UDP != "" {
		addr, err := net.ResolveUDPAddr("udp", l.UDP)
		if err != nil {
			return fmt.Errorf("resolve udp %s: %w", l.UDP, err)
		}
		conn, err := net.ListenUDP("udp", addr)
		if err != nil {
			return fmt.Errorf("listen udp %s: %w", l.UDP, err)
		}
		s.udpConn = conn
		s.addrs[ListenerUDP] = conn.LocalAddr()
	}
	if l.HTTP != "" {
		ln, err := net.Listen("tcp", l.HTTP)
		if err != nil {
			return fmt.Errorf("listen http %s: %w", l.HTTP, err)
		}
		s.httpServers = append(s.httpServers, httpListener{srv: s.newHTTPServer(false), ln: ln})
		s.addrs[ListenerHTTP] = ln.Addr()
	}
	if l.HTTPS != "" {
		ln, err := tls.Listen("tcp", l.HTTPS, tlsConfig)
		if err != nil {
			return fmt.Errorf("listen https %s: %w", l.HTTPS, err)
		}
		s.httpServers = append(s.httpServers, httpListener{srv: s.newHTTPServer(true), ln: ln})
		s.addrs[ListenerHTTPS] = ln.Addr()
	}

	if len(s.addrs) == 0 {
		s.logger.Warn("no listener configured")
	}
	return nil
}

func (s *Server) loadTLSConfig() (*tls.Config, error) {
	if s.tlsConfig != nil {
		return s.tlsConfig, nil
	}
	cert, err := tls.LoadX509KeyPair(s.cfg.Listeners.CertFile, s.cfg.Listeners.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load tls certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func (s *Server) newHTTPServer(secure bool) *http.Server {
	return &http.Server{
		Handler:           s.router(secure),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger.Named("http")),
	}
}

// closeListeners stops accepting. Live sessions are not touched.
func (s *Server) closeListeners() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ln := range s.listeners {
		if err := ln.Close(); err != nil {
			s.logger.Debug("listener close failed", zap.Error(err))
		}
	}
	for _, h := range s.httpServers {
		h.srv.Close()
		// Close does not reach a listener that never started serving.
		h.ln.Close()
	}
	if s.udpConn != nil {
		s.udpConn.Close()
	}
}

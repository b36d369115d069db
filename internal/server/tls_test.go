package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luciancaetano/sessnet"
	"github.com/luciancaetano/sessnet/client"
	"github.com/luciancaetano/sessnet/internal/config"
	"github.com/luciancaetano/sessnet/operation"
)

func selfSignedTLS(t *testing.T) (*tls.Config, *x509.CertPool) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}

	roots := x509.NewCertPool()
	roots.AddCert(leaf)
	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}},
		MinVersion:   tls.VersionTLS12,
	}, roots
}

func TestSecureTransports(t *testing.T) {
	t.Parallel()

	serverTLS, roots := selfSignedTLS(t)
	protocols := make(chan operation.TransportProtocol, 4)
	s := startServer(t, func(cfg *config.Config) {
		cfg.Listeners.TLS = "127.0.0.1:0"
		cfg.Listeners.HTTPS = "127.0.0.1:0"
	}, Options{
		TLSConfig:   serverTLS,
		CheckOrigin: func(*http.Request) bool { return true },
		OnConnect:   func(sess sessnet.Session) { protocols <- sess.TransportProtocol() },
	})
	ctx := testContext(t)
	clientTLS := &tls.Config{RootCAs: roots, MinVersion: tls.VersionTLS12}

	tc, err := client.DialTLS(ctx, s.Addr(ListenerTLS).String(), clientTLS, client.Options{})
	if err != nil {
		t.Fatalf("DialTLS: %v", err)
	}
	defer tc.Close()
	if got := <-protocols; got != operation.TransportSsl {
		t.Errorf("TLS listener transport = %s, want %s", got, operation.TransportSsl)
	}

	url := "wss://" + s.Addr(ListenerHTTPS).String() + "/ws"
	wc, err := client.DialWebSocket(ctx, url, &websocket.Dialer{TLSClientConfig: clientTLS}, client.Options{})
	if err != nil {
		t.Fatalf("DialWebSocket: %v", err)
	}
	defer wc.Close()
	if got := <-protocols; got != operation.TransportWss {
		t.Errorf("HTTPS listener transport = %s, want %s", got, operation.TransportWss)
	}

	for name, c := range map[string]*client.Client{"tls": tc, "wss": wc} {
		if _, err := c.Handshake(ctx, "S-"+name, nil, ""); err != nil {
			t.Fatalf("%s Handshake: %v", name, err)
		}
		resp, err := c.Request(ctx, opEcho, operation.Parameters{1: []byte(name)}, operation.SendParameters{})
		if err != nil {
			t.Fatalf("%s Request: %v", name, err)
		}
		assertEcho(t, resp, "S-"+name, name)
	}
}

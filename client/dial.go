package client

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luciancaetano/sessnet/internal/transport"
	"github.com/luciancaetano/sessnet/operation"
)

// maxDatagramSize is the largest UDP payload.
const maxDatagramSize = 64 * 1024

// DialTCP connects to a TCP listener.
func DialTCP(ctx context.Context, addr string, opts Options) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial tcp %s: %w", addr, err)
	}
	return startStream(conn, operation.TransportTcp, opts), nil
}

// DialTLS connects to a TLS listener.
func DialTLS(ctx context.Context, addr string, tlsConfig *tls.Config, opts Options) (*Client, error) {
	d := tls.Dialer{Config: tlsConfig}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial tls %s: %w", addr, err)
	}
	return startStream(conn, operation.TransportSsl, opts), nil
}

// DialWebSocket connects to a ws:// or wss:// URL. A nil dialer uses
// websocket.DefaultDialer.
func DialWebSocket(ctx context.Context, url string, dialer *websocket.Dialer, opts Options) (*Client, error) {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket %s: %w", url, err)
	}

	proto := operation.TransportWs
	if strings.HasPrefix(url, "wss:") {
		proto = operation.TransportWss
	}
	tr := transport.NewWebSocket(conn, proto, conn.RemoteAddr().String(), opts.SendQueueLength)
	c := newClient(opts, tr)
	go c.readWebSocket(tr)
	return c, nil
}

// DialUDP sends frames to a UDP listener from an ephemeral local port.
func DialUDP(ctx context.Context, addr string, opts Options) (*Client, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve udp %s: %w", addr, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}

	tr := transport.NewDatagram(conn, raddr, opts.SendQueueLength)
	c := newClient(opts, tr)
	go c.readDatagrams(conn, raddr)
	return c, nil
}

func startStream(conn net.Conn, proto operation.TransportProtocol, opts Options) *Client {
	c := newClient(opts, transport.NewStream(conn, proto, opts.SendQueueLength))
	go c.readStream(conn)
	return c
}

// The read loops hand the final Disconnect to the fiber so frames already
// queued, such as a server Disconnect, are handled first.

func (c *Client) readStream(conn net.Conn) {
	defer c.sess.Fiber().Enqueue(c.sess.Disconnect)

	r := bufio.NewReader(conn)
	for {
		h, payload, err := c.framer.ReadFrame(r)
		if err != nil {
			return
		}
		c.engine.ReceiveFrame(c.sess, h, payload)
	}
}

func (c *Client) readWebSocket(tr *transport.WebSocket) {
	defer c.sess.Fiber().Enqueue(c.sess.Disconnect)

	tr.PrepareRead(0)
	for {
		messageType, data, err := tr.Conn().ReadMessage()
		if err != nil {
			return
		}
		tr.ExtendRead()
		if messageType == websocket.BinaryMessage {
			c.engine.Receive(c.sess, data)
		}
	}
}

func (c *Client) readDatagrams(conn *net.UDPConn, server *net.UDPAddr) {
	defer conn.Close()
	defer c.sess.Fiber().Enqueue(c.sess.Disconnect)

	buf := make([]byte, maxDatagramSize)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return
		}
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() && c.sess.IsConnected() {
				continue
			}
			return
		}
		if !from.IP.Equal(server.IP) || from.Port != server.Port {
			continue
		}
		c.engine.Receive(c.sess, buf[:n])
	}
}

package transport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luciancaetano/sessnet/operation"
)

// WebSocket carries one frame per binary message.
type WebSocket struct {
	*pump
	conn       *websocket.Conn
	proto      operation.TransportProtocol
	remoteAddr string

	mu          sync.Mutex
	closeCode   int
	closeReason string
}

// NewWebSocket wraps conn. proto should be TransportWs or TransportWss.
func NewWebSocket(conn *websocket.Conn, proto operation.TransportProtocol, remoteAddr string, queueLength int) *WebSocket {
	ws := &WebSocket{
		conn:       conn,
		proto:      proto,
		remoteAddr: remoteAddr,
		closeCode:  websocket.CloseNormalClosure,
	}
	ws.pump = newPump(queueLength, ws.write, ws.writePing, ws.closeConn)
	return ws
}

func (ws *WebSocket) write(frame []byte) error {
	ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (ws *WebSocket) writePing() error {
	ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.conn.WriteMessage(websocket.PingMessage, nil)
}

func (ws *WebSocket) closeConn() error {
	ws.mu.Lock()
	code, reason := ws.closeCode, ws.closeReason
	ws.mu.Unlock()

	// Send close message
	message := websocket.FormatCloseMessage(code, reason)
	deadline := time.Now().Add(time.Second)
	ws.conn.WriteControl(websocket.CloseMessage, message, deadline)

	return ws.conn.Close()
}

// Conn returns the underlying connection for the read loop.
func (ws *WebSocket) Conn() *websocket.Conn {
	return ws.conn
}

// PrepareRead installs the read deadline and the pong handler that extends it.
func (ws *WebSocket) PrepareRead(readLimit int64) {
	if readLimit > 0 {
		ws.conn.SetReadLimit(readLimit)
	}
	// Set read deadline to prevent indefinite blocking
	ws.conn.SetReadDeadline(time.Now().Add(pongWait))
	// Set pong handler to reset read deadline on pong
	ws.conn.SetPongHandler(func(string) error {
		ws.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
}

// ExtendRead resets the read deadline after a successful read.
func (ws *WebSocket) ExtendRead() {
	ws.conn.SetReadDeadline(time.Now().Add(pongWait))
}

func (ws *WebSocket) Protocol() operation.TransportProtocol {
	return ws.proto
}

func (ws *WebSocket) IsConnected() bool {
	return !ws.isClosed()
}

func (ws *WebSocket) Send(frame []byte) error {
	return ws.send(frame)
}

func (ws *WebSocket) SendAsync(frame []byte) error {
	return ws.sendAsync(frame)
}

// Close closes the connection with websocket.CloseNormalClosure.
func (ws *WebSocket) Close() error {
	return ws.close()
}

// CloseWithCode closes the connection with a close code and optional reason
func (ws *WebSocket) CloseWithCode(code int, reason string) error {
	ws.mu.Lock()
	ws.closeCode, ws.closeReason = code, reason
	ws.mu.Unlock()
	return ws.close()
}

func (ws *WebSocket) RemoteAddr() string {
	return ws.remoteAddr
}

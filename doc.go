// Package sessnet provides a session-oriented RPC transport for game servers and real-time applications.
//
// Clients connect over TCP, TLS, WebSocket, secure WebSocket, UDP or plain HTTP POST. Every
// connection becomes a transport session; a handshake binds it to a logical session id that can
// outlive the connection and to a user identity that outlives both.
//
// # Architecture
//
// Every frame carries one typed operation: Request, Response, Event, Ping, Pong, Handshake,
// HandshakeAck or Disconnect. Requests are routed by operation code to registered handlers and
// are always answered exactly once. Events are fire-and-forget in both directions.
//
// All processing for one session runs on a per-session fiber, so frames of a session are handled
// in order and never concurrently, while different sessions share a bounded worker pool.
//
// # Quick Start
//
//	import (
//	    "github.com/luciancaetano/sessnet/operation"
//	    "github.com/luciancaetano/sessnet/server"
//	)
//
//	cfg := server.DefaultConfig()
//	cfg.Listeners.TCP = ":7000"
//	cfg.Listeners.HTTP = ":8080" // WebSocket on /ws, HTTP-as-RPC on /rpc
//
//	srv := server.New(server.Options{Config: cfg})
//
//	srv.RegisterRequestHandler(0x01, func(ctx context.Context, req *operation.Request,
//	    params operation.SendParameters, peer *sessnet.UserPeer, s sessnet.Session) (*operation.Response, error) {
//	    return &operation.Response{Parameters: req.Parameters}, nil
//	})
//
//	srv.Start(ctx)
//
// # Protocol Format
//
//	[1 byte: OpType][1 byte: Codec][1 byte: Cipher][1 byte: Flags][4 bytes: Length, big-endian][N bytes: Payload]
//
// The header is never encrypted. The payload is encoded with the codec named in the header
// (simple-pack or MessagePack) and, when the Encrypted flag is set, sealed with the cipher named
// in the header (AES-GCM or ChaCha20-Poly1305) using the key bound at handshake.
//
// # Handshake
//
// A connection must send Handshake{SessionID, EncryptKey, AuthToken} before any Request or
// Event is served. The server:
//
//   - ignores a second handshake on a bound connection
//   - rejects a token whose user differs from the user already bound to the session id
//   - caps the number of connections per session id and transport family, evicting the oldest
//   - answers with HandshakeAck{ConnectionID, ServerSessionID}
//
// Ping is answered with Pong at any time.
//
// # Rate Limiting
//
// Each session has an independent token bucket. When it is exhausted the server sends
// Disconnect{RateLimitExceeded} and closes the connection.
//
//	cfg.RateLimit = *server.DefaultRateLimitConfig() // 100 msgs/s, burst 200
//	cfg.RateLimit = *server.NoRateLimit()
//
// # Important
//
//   - Handlers run on the session fiber; a slow handler delays later frames of the same session only
//   - Configure CheckOrigin in production (never use server.AllOrigins() in production)
//   - The EncryptKey travels in the clear inside the handshake; use TLS or WSS when encrypting
package sessnet

package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luciancaetano/sessnet/client"
	"github.com/luciancaetano/sessnet/operation"
)

// TestStressConcurrentSessions opens many sessions over TCP and WebSocket,
// runs requests on all of them at once and then broadcasts to every one.
func TestStressConcurrentSessions(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	const (
		numClients        = 500
		requestsPerClient = 20
	)

	s := startServer(t, nil, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var (
		requests atomic.Int64
		failures atomic.Int64
		events   atomic.Int64
		wg       sync.WaitGroup
	)
	clients := make([]*client.Client, numClients)

	start := time.Now()
	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			opts := client.Options{
				OnEvent: func(*operation.Event, operation.SendParameters) { events.Add(1) },
			}
			var (
				c   *client.Client
				err error
			)
			if i%2 == 0 {
				c, err = client.DialTCP(ctx, s.Addr(ListenerTCP).String(), opts)
			} else {
				c, err = client.DialWebSocket(ctx, "ws://"+s.Addr(ListenerHTTP).String()+"/ws", nil, opts)
			}
			if err != nil {
				failures.Add(1)
				return
			}
			clients[i] = c

			if _, err := c.Handshake(ctx, fmt.Sprintf("stress-%d", i), nil, ""); err != nil {
				failures.Add(1)
				return
			}
			for j := 0; j < requestsPerClient; j++ {
				payload := []byte(fmt.Sprintf("%d/%d", i, j))
				resp, err := c.Request(ctx, opEcho, operation.Parameters{1: payload}, operation.SendParameters{})
				if err != nil || string(resp.Parameters[1]) != string(payload) {
					failures.Add(1)
					return
				}
				requests.Add(1)
			}
		}(i)
	}
	wg.Wait()
	defer func() {
		for _, c := range clients {
			if c != nil {
				c.Close()
			}
		}
	}()

	duration := time.Since(start)
	t.Logf("%d clients, %d requests in %v (%.0f req/s)", numClients, requests.Load(), duration, float64(requests.Load())/duration.Seconds())

	if f := failures.Load(); f > 0 {
		t.Fatalf("%d clients failed", f)
	}

	n := s.Broadcast(&operation.Event{EventCode: 1}, operation.SendParameters{})
	if n != numClients {
		t.Errorf("Broadcast reached %d sessions, want %d", n, numClients)
	}
	waitFor(t, func() bool { return events.Load() == numClients })
}

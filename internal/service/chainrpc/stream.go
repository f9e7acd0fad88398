package chainrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	drepo "ChainWatch/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Stream implements a ChainStream backed by a websocket subscription for
// pending transaction ids. It complements the polling source with lower
// detection latency.
type Stream struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// NewStream creates a pending-tx websocket stream.
func NewStream(url string, reconnectDelay, pingInterval time.Duration) drepo.ChainStream {
	return &Stream{
		url:            url,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the websocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	s.conn = conn
	s.connected = true
	return nil
}

// Subscribe requests pending transaction notifications.
func (s *Stream) Subscribe(ctx context.Context) error {
	if s.conn == nil || !s.connected {
		return fmt.Errorf("stream not connected")
	}
	msg := map[string]string{"type": "subscribe", "topic": "pending_tx"}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe pending_tx: %w", err)
	}
	return nil
}

type streamFrame struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids"`
}

// Read streams record ids and errors.
func (s *Stream) Read(ctx context.Context) (<-chan string, <-chan error) {
	ids := make(chan string, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.conn != nil {
					_ = s.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(ids)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if s.conn == nil {
					errs <- fmt.Errorf("stream conn nil")
					return
				}
				_, b, err := s.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("stream read: %w", err)
					return
				}
				var f streamFrame
				if err := json.Unmarshal(b, &f); err != nil {
					// ignore non-notification frames
					continue
				}
				if f.Type != "pending_tx" {
					continue
				}
				for _, id := range f.IDs {
					select {
					case ids <- id:
					default:
						// drop on backpressure; polling will catch up
					}
				}
			}
		}
	}()

	return ids, errs
}

// Reconnect closes and reconnects after the configured delay.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	time.Sleep(s.reconnectDelay)
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the connection.
func (s *Stream) Close() error {
	s.connected = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool { return s.connected }

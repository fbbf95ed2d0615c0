package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"betterhud/server/internal/ui"
)

// ErrSessionClosed is returned by writes after Close.
var ErrSessionClosed = errors.New("ws: session closed")

// Session serialises writes to one client connection. It is the ui.Sink the
// player's overlay updates are delivered to.
type Session struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed atomic.Bool
	sent   atomic.Uint64
}

func newSession(conn *websocket.Conn, writeTimeout time.Duration) *Session {
	return &Session{conn: conn, writeTimeout: writeTimeout}
}

// SendUI encodes update and writes it as a text frame.
func (s *Session) SendUI(update ui.Update) error {
	data, err := ui.Encode(update)
	if err != nil {
		return err
	}
	return s.WriteMessage(websocket.TextMessage, data)
}

// WriteJSON marshals payload and writes it as a text frame.
func (s *Session) WriteJSON(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) WriteMessage(messageType int, data []byte) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	if err := s.conn.WriteMessage(messageType, data); err != nil {
		return err
	}
	s.sent.Add(1)
	return nil
}

// Sent reports how many frames were written.
func (s *Session) Sent() uint64 { return s.sent.Load() }

// Close sends a close frame with reason and closes the connection. Closing
// twice is a no-op.
func (s *Session) Close(code int, reason string) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	message := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
	return s.conn.Close()
}

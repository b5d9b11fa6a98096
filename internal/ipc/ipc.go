// Package ipc is the local control socket: one JSON request and one JSON
// response per connection.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"sync"
	"time"
)

const DefaultSocketPath = "/tmp/valuebot.sock"

const (
	CmdPing   = "ping"
	CmdStats  = "stats"
	CmdReset  = "reset"
	CmdValues = "values"
)

type Request struct {
	Cmd    string `json:"cmd"`
	UserID int64  `json:"user_id,omitempty"`
}

type Value struct {
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

type Response struct {
	OK      bool    `json:"ok"`
	Message string  `json:"message,omitempty"`
	Values  []Value `json:"values,omitempty"`
}

type Handler func(ctx context.Context, req Request) Response

type Server struct {
	path string
	ln   net.Listener
	h    Handler
	wg   sync.WaitGroup
}

// Listen binds the unix socket at path, replacing a stale one.
func Listen(path string, h Handler) (*Server, error) {
	_ = os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	return &Server{path: path, ln: ln, h: h}, nil
}

// Serve accepts connections until Close.
func (s *Server) Serve(ctx context.Context) {
	log.Info("Control socket listening", "path", s.path)
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn("Control accept", "err", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) Close() error {
	err := s.ln.Close()
	s.wg.Wait()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(30 * time.Second))

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		_ = json.NewEncoder(conn).Encode(Response{Message: "bad request: " + err.Error()})
		return
	}
	log.Debug("Control command", "cmd", req.Cmd, "user", req.UserID)

	resp := s.h(ctx, req)
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		log.Warn("Control reply", "err", err)
	}
}

// Send performs one request against the socket at path.
func Send(ctx context.Context, path string, req Request) (Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("send: %w", err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("read reply: %w", err)
	}
	return resp, nil
}

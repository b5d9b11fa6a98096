package ipc

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"valuebot/internal/domain"
)

type fakeBackend struct {
	resets  []int64
	vals    []domain.UserValue
	pingErr error
}

func (f *fakeBackend) Reset(_ context.Context, userID int64) error {
	f.resets = append(f.resets, userID)
	return nil
}

func (f *fakeBackend) ListValues(context.Context, int64, int) ([]domain.UserValue, error) {
	return f.vals, nil
}

func (f *fakeBackend) CountValues(context.Context, int64) (int, error) { return 250, nil }

func (f *fakeBackend) Ping(context.Context) error { return f.pingErr }

func (f *fakeBackend) Len(context.Context) (int, error) { return 3, nil }

func newControl(f *fakeBackend) Control {
	return Control{Sessions: f, Resetter: f, Values: f}
}

func TestSocketRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.sock")
	backend := &fakeBackend{vals: []domain.UserValue{{Value: "семья", CreatedAt: time.Unix(1700000000, 0).UTC()}}}

	srv, err := Listen(path, newControl(backend).Handle)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go srv.Serve(context.Background())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := Send(ctx, path, Request{Cmd: CmdPing})
	if err != nil || !resp.OK || resp.Message != "pong" {
		t.Fatalf("ping: %+v %v", resp, err)
	}

	resp, err = Send(ctx, path, Request{Cmd: CmdValues, UserID: 9})
	if err != nil || !resp.OK || len(resp.Values) != 1 || resp.Values[0].Value != "семья" || resp.Message != "1 of 250 values" {
		t.Fatalf("values: %+v %v", resp, err)
	}

	resp, err = Send(ctx, path, Request{Cmd: CmdReset, UserID: 9})
	if err != nil || !resp.OK {
		t.Fatalf("reset: %+v %v", resp, err)
	}
	if len(backend.resets) != 1 || backend.resets[0] != 9 {
		t.Fatalf("resets = %v", backend.resets)
	}
}

func TestControlErrors(t *testing.T) {
	backend := &fakeBackend{pingErr: errors.New("db gone")}
	c := newControl(backend)
	ctx := context.Background()

	if r := c.Handle(ctx, Request{Cmd: CmdPing}); r.OK {
		t.Fatalf("ping must fail: %+v", r)
	}
	if r := c.Handle(ctx, Request{Cmd: CmdReset}); r.OK || r.Message != "user_id required" {
		t.Fatalf("reset without user: %+v", r)
	}
	if r := c.Handle(ctx, Request{Cmd: "reboot"}); r.OK {
		t.Fatalf("unknown command must fail: %+v", r)
	}
	if r := c.Handle(ctx, Request{Cmd: CmdStats}); !r.OK || r.Message != "sessions: 3" {
		t.Fatalf("stats: %+v", r)
	}
}

func TestSendWithoutServer(t *testing.T) {
	_, err := Send(context.Background(), filepath.Join(t.TempDir(), "missing.sock"), Request{Cmd: CmdPing})
	if err == nil {
		t.Fatal("expected dial error")
	}
}

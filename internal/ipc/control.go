package ipc

import (
	"context"
	"fmt"

	"valuebot/internal/domain"
)

const listLimit = 100

type Resetter interface {
	Reset(ctx context.Context, userID int64) error
}

type ValueLister interface {
	ListValues(ctx context.Context, userID int64, limit int) ([]domain.UserValue, error)
	CountValues(ctx context.Context, userID int64) (int, error)
	Ping(ctx context.Context) error
}

type SessionCounter interface {
	Len(ctx context.Context) (int, error)
}

// Control answers admin commands against the running bot.
type Control struct {
	Sessions SessionCounter
	Resetter Resetter
	Values   ValueLister
}

func (c Control) Handle(ctx context.Context, req Request) Response {
	switch req.Cmd {
	case CmdPing:
		if err := c.Values.Ping(ctx); err != nil {
			return Response{Message: "values store: " + err.Error()}
		}
		return Response{OK: true, Message: "pong"}

	case CmdStats:
		n, err := c.Sessions.Len(ctx)
		if err != nil {
			return Response{Message: err.Error()}
		}
		return Response{OK: true, Message: fmt.Sprintf("sessions: %d", n)}

	case CmdReset:
		if req.UserID == 0 {
			return Response{Message: "user_id required"}
		}
		if err := c.Resetter.Reset(ctx, req.UserID); err != nil {
			return Response{Message: err.Error()}
		}
		return Response{OK: true, Message: fmt.Sprintf("session %d reset", req.UserID)}

	case CmdValues:
		if req.UserID == 0 {
			return Response{Message: "user_id required"}
		}
		total, err := c.Values.CountValues(ctx, req.UserID)
		if err != nil {
			return Response{Message: err.Error()}
		}
		vals, err := c.Values.ListValues(ctx, req.UserID, listLimit)
		if err != nil {
			return Response{Message: err.Error()}
		}
		out := make([]Value, 0, len(vals))
		for _, v := range vals {
			out = append(out, Value{Value: v.Value, CreatedAt: v.CreatedAt})
		}
		return Response{OK: true, Message: fmt.Sprintf("%d of %d values", len(out), total), Values: out}

	default:
		return Response{Message: "unknown command " + req.Cmd}
	}
}

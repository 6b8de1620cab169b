package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"burrito-backend/internal/models"
	"burrito-backend/internal/store"
)

type actorKey struct{}

// Actor is who performed a change. A nil UserID means a guest or the system.
type Actor struct {
	UserID *uint
	Name   string
}

var System = Actor{Name: "system"}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext falls back to System when no actor was attached.
func ActorFromContext(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey{}).(Actor); ok {
		return a
	}
	return System
}

type LogOptions struct {
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog records an audit entry through st, normally the caller's
// transaction store so the entry commits or rolls back with the change.
func WriteLog(ctx context.Context, st store.Store, opts LogOptions) error {
	actor := ActorFromContext(ctx)

	// jsonb rejects an empty string; store JSON null instead.
	beforeStr, afterStr := "null", "null"
	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	log := models.AuditLog{
		UserID:      actor.UserID,
		UserName:    actor.Name,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}
	if err := st.CreateAuditLog(ctx, &log); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

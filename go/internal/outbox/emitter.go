package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/knockouthq/knockout/go/internal/realtime"
)

// Emitter records change events as outbox rows, one transaction per event.
// The row and its listener notification commit together; the relay handles
// delivery from there.
type Emitter struct {
	db   *sql.DB
	repo *Repository
}

func NewEmitter(db *sql.DB, repo *Repository) *Emitter {
	return &Emitter{db: db, repo: repo}
}

func (e *Emitter) Emit(ctx context.Context, kind realtime.EntityKind, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := e.repo.Insert(ctx, tx, kind, key, data); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outbox transaction: %w", err)
	}
	return nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 500
)

// Store defines the interface for conversation history operations.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// AppendTurns inserts turns atomically, in order.
	AppendTurns(ctx context.Context, turns ...*Turn) error

	// RecentTurns returns up to limit of the latest turns of a conversation, oldest first.
	RecentTurns(ctx context.Context, conversationKey string, limit int) ([]Turn, error)

	// ClearConversation deletes every turn of a conversation.
	ClearConversation(ctx context.Context, conversationKey string) error

	// DeleteTurnsBefore deletes turns created before cutoff and returns how many were removed.
	DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) AppendTurns(ctx context.Context, turns ...*Turn) error {
	if len(turns) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for i, t := range turns {
		if t == nil {
			return fmt.Errorf("turn %d is nil", i)
		}
		if t.ConversationKey == "" {
			return fmt.Errorf("turn %d must have a conversation key", i)
		}
		if t.Role != RoleUser && t.Role != RoleAssistant {
			return fmt.Errorf("turn %d has invalid role %q", i, t.Role)
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		} else {
			t.CreatedAt = t.CreatedAt.UTC()
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving turns", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	query := `
        INSERT INTO turns (conversation_key, role, content, created_at)
        VALUES (:conversation_key, :role, :content, :created_at);
    `
	for _, t := range turns {
		result, err := tx.NamedExecContext(ctx, query, t)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error saving turn", "conversation", t.ConversationKey, "error", err)
			return fmt.Errorf("failed to save turn for %s: %w", t.ConversationKey, err)
		}
		if id, err := result.LastInsertId(); err == nil {
			t.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Turns saved", "conversation", turns[0].ConversationKey, "count", len(turns))
	return nil
}

func (s *sqlxStore) RecentTurns(ctx context.Context, conversationKey string, limit int) ([]Turn, error) {
	if conversationKey == "" {
		return nil, fmt.Errorf("conversation key cannot be empty")
	}
	switch {
	case limit <= 0:
		limit = defaultRecentLimit
	case limit > maxRecentLimit:
		limit = maxRecentLimit
	}

	var turns []Turn
	query := `
        SELECT id, conversation_key, role, content, created_at
        FROM turns
        WHERE conversation_key = ?
        ORDER BY id DESC
        LIMIT ?;
    `
	err := s.db.SelectContext(ctx, &turns, query, conversationKey, limit)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching turns", "conversation", conversationKey)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting recent turns", "conversation", conversationKey, "error", err)
		return nil, fmt.Errorf("failed to get recent turns for %s: %w", conversationKey, err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *sqlxStore) ClearConversation(ctx context.Context, conversationKey string) error {
	if conversationKey == "" {
		return fmt.Errorf("conversation key cannot be empty")
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE conversation_key = ?;`, conversationKey)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error clearing conversation", "conversation", conversationKey, "error", err)
		return fmt.Errorf("failed to clear conversation %s: %w", conversationKey, err)
	}
	affected, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Conversation cleared", "conversation", conversationKey, "deleted", affected)
	return nil
}

func (s *sqlxStore) DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE created_at < ?;`, cutoff.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting old turns", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("failed to delete turns before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}

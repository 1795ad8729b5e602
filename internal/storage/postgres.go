package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/miryas-ai/backend/internal/model/chat"
	"github.com/miryas-ai/backend/internal/model/user"
)

//go:embed migrations.sql
var migrations embed.FS

// PostgresStorage persists users, turns and interest profiles in PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(ctx context.Context, url string, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	s := &PostgresStorage{db: db, logger: logger}
	if err := s.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStorage) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return err
	}
	s.logger.Info("database schema initialized")
	return nil
}

const userColumns = `user_id, tier, daily_message_count, last_interaction_date, subscription_expiry_date, allow_continue`

func (s *PostgresStorage) EnsureUser(ctx context.Context, userID int64) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING `+userColumns, userID)

	u, err := scanUser(row)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return user.User{}, fmt.Errorf("error creating user: %w", err)
	}
	// Conflict: the row already existed, read it back.
	return s.GetUser(ctx, userID)
}

func (s *PostgresStorage) GetUser(ctx context.Context, userID int64) (user.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, ErrUserNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("error querying user: %w", err)
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	var last, expiry sql.NullTime
	if err := row.Scan(&u.ID, &u.Tier, &u.DailyMessageCount, &last, &expiry, &u.AllowContinue); err != nil {
		return user.User{}, err
	}
	if last.Valid {
		t := last.Time
		u.LastInteractionDate = &t
	}
	if expiry.Valid {
		t := expiry.Time
		u.SubscriptionExpiryDate = &t
	}
	return u, nil
}

// AdmitDailyMessage serializes the check-then-increment with a row lock so two
// concurrent requests cannot both spend the last free slot.
func (s *PostgresStorage) AdmitDailyMessage(ctx context.Context, userID int64, limit int, now time.Time) (Admission, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return Admission{}, fmt.Errorf("error starting quota transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1 FOR UPDATE`, userID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Admission{}, ErrUserNotFound
	}
	if err != nil {
		return Admission{}, fmt.Errorf("error locking user row: %w", err)
	}

	if u.Tier.Unlimited() {
		return Admission{Allowed: true, User: u}, tx.Commit()
	}

	today := dateOnly(now)
	effective := u.DailyMessageCount
	if u.LastInteractionDate == nil || u.LastInteractionDate.Before(today) {
		effective = 0
	}
	if effective >= limit {
		u.DailyMessageCount = effective
		return Admission{Allowed: false, User: u}, tx.Commit()
	}

	u.DailyMessageCount = effective + 1
	u.LastInteractionDate = &today
	if _, err := tx.ExecContext(ctx, `
		UPDATE users
		SET daily_message_count = $1, last_interaction_date = $2
		WHERE user_id = $3`,
		u.DailyMessageCount, today, userID); err != nil {
		return Admission{}, fmt.Errorf("error updating quota: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Admission{}, fmt.Errorf("error committing quota transaction: %w", err)
	}
	return Admission{Allowed: true, User: u}, nil
}

func (s *PostgresStorage) AppendTurn(ctx context.Context, turn chat.Turn) (chat.Turn, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO chat_turns (id, user_id, role, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		turn.ID, turn.UserID, turn.Role, turn.Content).Scan(&turn.CreatedAt)
	if err != nil {
		return chat.Turn{}, fmt.Errorf("error appending turn: %w", err)
	}
	return turn, nil
}

func (s *PostgresStorage) RecentTurns(ctx context.Context, userID int64, limit int) ([]chat.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, role, content, created_at
		FROM chat_turns
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying turns: %w", err)
	}
	defer rows.Close()

	var turns []chat.Turn
	for rows.Next() {
		var t chat.Turn
		if err := rows.Scan(&t.ID, &t.UserID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *PostgresStorage) UpsertInterest(ctx context.Context, profile user.InterestProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_interests (user_id, current_interest, interest_tags, last_updated)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE
		SET current_interest = $2, interest_tags = $3, last_updated = now()`,
		profile.UserID, profile.CurrentInterest, pq.Array(profile.Tags))
	if err != nil {
		return fmt.Errorf("error saving interest profile: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetInterest(ctx context.Context, userID int64) (user.InterestProfile, error) {
	p := user.InterestProfile{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT current_interest, interest_tags, last_updated
		FROM user_interests
		WHERE user_id = $1`, userID).
		Scan(&p.CurrentInterest, pq.Array(&p.Tags), &p.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return user.InterestProfile{}, ErrInterestNotFound
	}
	if err != nil {
		return user.InterestProfile{}, fmt.Errorf("error querying interest profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

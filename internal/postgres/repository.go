package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JeczzuDev/pov-ia-minigame/internal/config"
	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

// PostgreSQL error codes the repository maps to domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	dsn    string
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	return Connect(context.Background(), cfg.ConnectionString(), func(pc *pgxpool.Config) {
		pc.MaxConns = int32(cfg.MaxConnections)
		pc.MinConns = int32(cfg.MinConnections)
		pc.MaxConnLifetime = cfg.MaxConnLifetime
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}, logger)
}

// Connect opens a pool for dsn. tune, when non-nil, adjusts the pool
// settings before connecting.
func Connect(ctx context.Context, dsn string, tune func(*pgxpool.Config), logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	if tune != nil {
		tune(poolConfig)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		dsn:    dsn,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations applies pending schema migrations.
func (r *Repository) RunMigrations(ctx context.Context) error {
	return Migrate(ctx, r.dsn, r.logger)
}

// UpsertUser inserts the profile or refreshes its username and email.
func (r *Repository) UpsertUser(ctx context.Context, user domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (id, username, email, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), now(), now())
		ON CONFLICT (id)
		DO UPDATE SET username = EXCLUDED.username, email = EXCLUDED.email, updated_at = now()
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query, user.ID, user.Username, user.Email).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upserting user: %w", err)
	}
	return &user, nil
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT id, username, COALESCE(email, ''), created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user domain.User
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &user, nil
}

// GetConfigValue returns the app_config value for key, or "" if unset.
func (r *Repository) GetConfigValue(ctx context.Context, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM app_config WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("getting config value: %w", err)
	}
	return value, nil
}

// SetConfigValue stores an app_config entry.
func (r *Repository) SetConfigValue(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO app_config (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := r.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("setting config value: %w", err)
	}
	return nil
}

func (r *Repository) GetAIModel(ctx context.Context, modelID string) (*domain.AIModel, error) {
	query := `SELECT id, name, provider, model, active FROM ai_models WHERE id = $1`
	var m domain.AIModel
	err := r.pool.QueryRow(ctx, query, modelID).Scan(&m.ID, &m.Name, &m.Provider, &m.Model, &m.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrModelNotFound
		}
		return nil, fmt.Errorf("getting ai model: %w", err)
	}
	return &m, nil
}

// SaveAIModel inserts or replaces a model row.
func (r *Repository) SaveAIModel(ctx context.Context, m domain.AIModel) error {
	query := `
		INSERT INTO ai_models (id, name, provider, model, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET name = $2, provider = $3, model = $4, active = $5
	`
	if _, err := r.pool.Exec(ctx, query, m.ID, m.Name, m.Provider, m.Model, m.Active); err != nil {
		return fmt.Errorf("saving ai model: %w", err)
	}
	return nil
}

// ListStandingRows reads every registered player's match, plus the included
// one, oldest first.
func (r *Repository) ListStandingRows(ctx context.Context, includeMatchID string) ([]domain.StandingRow, error) {
	query := `
		SELECT m.id::text, COALESCE(m.user_id, ''), COALESCE(u.username, ''),
			   m.is_anonymous, m.score_ai, m.time_bonus
		FROM matches m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE (m.user_id IS NOT NULL AND NOT m.is_anonymous)
		   OR ($1 <> '' AND m.id::text = $1)
		ORDER BY m.started_at
	`
	rows, err := r.pool.Query(ctx, query, includeMatchID)
	if err != nil {
		return nil, fmt.Errorf("listing standing rows: %w", err)
	}
	defer rows.Close()

	var out []domain.StandingRow
	for rows.Next() {
		var row domain.StandingRow
		if err := rows.Scan(&row.MatchID, &row.UserID, &row.Username, &row.IsAnonymous, &row.BaseScore, &row.TimeBonus); err != nil {
			return nil, fmt.Errorf("scanning standing row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func isPgError(err error, code string) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr, true
	}
	return nil, false
}

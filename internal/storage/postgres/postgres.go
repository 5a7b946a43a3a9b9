package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vidstream/internal/config"
	"vidstream/internal/models"
	"vidstream/internal/storage"
	"vidstream/internal/storage/postgres/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	dsn := dsn(cfg)

	if err := runMigrations(ctx, dsn); err != nil {
		return nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

func runMigrations(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}

const userColumns = `
	id, username, email, full_name, password_hash, refresh_token,
	avatar_url, avatar_key, cover_image_url, cover_image_key, created_at
`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.PassHash,
		&u.RefreshToken,
		&u.AvatarURL,
		&u.AvatarKey,
		&u.CoverImageURL,
		&u.CoverImageKey,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, err
	}

	return u, nil
}

func (r *PostgresRepo) SaveUser(ctx context.Context, user models.User) (int64, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (username, email, full_name, password_hash,
			avatar_url, avatar_key, cover_image_url, cover_image_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.FullName,
		user.PassHash,
		user.AvatarURL,
		user.AvatarKey,
		user.CoverImageURL,
		user.CoverImageKey,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, storage.ErrUserExists
		}

		return 0, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return id, nil
}

// UserByLogin matches by username or email, whichever is supplied.
func (r *PostgresRepo) UserByLogin(ctx context.Context, username, email string) (models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE (username = $1 AND $1 <> '') OR (email = $2 AND $2 <> '');
	`

	return scanUser(r.pool.QueryRow(ctx, query, username, email))
}

func (r *PostgresRepo) UserByID(ctx context.Context, id int64) (models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1;
	`

	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// UpdateRefreshToken writes the session-state field in a single statement,
// bypassing any business validation of the rest of the record.
func (r *PostgresRepo) UpdateRefreshToken(ctx context.Context, userID int64, token *string) error {
	const op = "storage.postgres.UpdateRefreshToken"

	query := `UPDATE users SET refresh_token = $1 WHERE id = $2`

	_, err := r.pool.Exec(ctx, query, token, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RotateRefreshToken is a compare-and-set: the stored token changes only if
// it still equals current. A concurrent rotation leaves zero matched rows.
func (r *PostgresRepo) RotateRefreshToken(ctx context.Context, userID int64, current, next string) error {
	const op = "storage.postgres.RotateRefreshToken"

	query := `
		UPDATE users
		SET refresh_token = $1
		WHERE id = $2 AND refresh_token = $3
	`

	tag, err := r.pool.Exec(ctx, query, next, userID, current)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrTokenMismatch
	}

	return nil
}

func (r *PostgresRepo) UpdatePasswordHash(ctx context.Context, userID int64, passHash []byte) error {
	const op = "storage.postgres.UpdatePasswordHash"

	query := `UPDATE users SET password_hash = $1 WHERE id = $2`

	_, err := r.pool.Exec(ctx, query, passHash, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) UpdateAccount(ctx context.Context, userID int64, fullName, email string) (models.User, error) {
	const op = "storage.postgres.UpdateAccount"

	query := `
		UPDATE users
		SET full_name = $1, email = $2
		WHERE id = $3
		RETURNING ` + userColumns + `;
	`

	u, err := scanUser(r.pool.QueryRow(ctx, query, fullName, email, userID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.User{}, storage.ErrUserExists
		}
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, err
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// UpdateAvatar swaps the avatar object reference and returns the key of the
// replaced object so the caller can delete it from media storage.
func (r *PostgresRepo) UpdateAvatar(ctx context.Context, userID int64, url, key string) (string, error) {
	const op = "storage.postgres.UpdateAvatar"

	query := `
		UPDATE users u
		SET avatar_url = $2, avatar_key = $3
		FROM (SELECT id, avatar_key FROM users WHERE id = $1 FOR UPDATE) old
		WHERE u.id = old.id
		RETURNING old.avatar_key;
	`

	var oldKey string

	err := r.pool.QueryRow(ctx, query, userID, url, key).Scan(&oldKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", storage.ErrUserNotFound
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return oldKey, nil
}

func (r *PostgresRepo) UpdateCoverImage(ctx context.Context, userID int64, url, key string) (string, error) {
	const op = "storage.postgres.UpdateCoverImage"

	query := `
		UPDATE users u
		SET cover_image_url = $2, cover_image_key = $3
		FROM (SELECT id, cover_image_key FROM users WHERE id = $1 FOR UPDATE) old
		WHERE u.id = old.id
		RETURNING old.cover_image_key;
	`

	var oldKey string

	err := r.pool.QueryRow(ctx, query, userID, url, key).Scan(&oldKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", storage.ErrUserNotFound
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return oldKey, nil
}

// ChannelProfile aggregates the channel's subscriber graph counters and
// whether the viewer is subscribed to it.
func (r *PostgresRepo) ChannelProfile(ctx context.Context, username string, viewerID int64) (models.ChannelProfile, error) {
	const op = "storage.postgres.ChannelProfile"

	query := `
		SELECT
			u.id, u.username, u.full_name, u.email, u.avatar_url, u.cover_image_url,
			(SELECT count(*) FROM subscriptions s WHERE s.channel_id = u.id)    AS subscriber_count,
			(SELECT count(*) FROM subscriptions s WHERE s.subscriber_id = u.id) AS subscribed_count,
			EXISTS (
				SELECT 1 FROM subscriptions s
				WHERE s.channel_id = u.id AND s.subscriber_id = $2
			) AS is_subscribed
		FROM users u
		WHERE u.username = $1;
	`

	var p models.ChannelProfile

	err := r.pool.QueryRow(ctx, query, username, viewerID).Scan(
		&p.ID,
		&p.Username,
		&p.FullName,
		&p.Email,
		&p.AvatarURL,
		&p.CoverImageURL,
		&p.SubscriberCount,
		&p.SubscribedCount,
		&p.IsSubscribed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ChannelProfile{}, storage.ErrUserNotFound
		}

		return models.ChannelProfile{}, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

func (r *PostgresRepo) IsSubscribed(ctx context.Context, channelID, viewerID int64) (bool, error) {
	const op = "storage.postgres.IsSubscribed"

	query := `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE channel_id = $1 AND subscriber_id = $2
		);
	`

	var subscribed bool

	err := r.pool.QueryRow(ctx, query, channelID, viewerID).Scan(&subscribed)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return subscribed, nil
}

func (r *PostgresRepo) WatchHistory(ctx context.Context, userID int64) ([]models.WatchEntry, error) {
	const op = "storage.postgres.WatchHistory"

	query := `
		SELECT
			v.id, v.owner_id, v.title, v.duration_seconds, v.file_url, v.thumbnail_url, v.created_at,
			o.username, o.full_name, o.avatar_url,
			h.watched_at
		FROM watch_history h
		JOIN videos v ON v.id = h.video_id
		JOIN users o  ON o.id = v.owner_id
		WHERE h.user_id = $1
		ORDER BY h.watched_at DESC;
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var history []models.WatchEntry

	for rows.Next() {
		var e models.WatchEntry

		err := rows.Scan(
			&e.Video.ID,
			&e.Video.OwnerID,
			&e.Video.Title,
			&e.Video.Duration,
			&e.Video.FileURL,
			&e.Video.ThumbnailURL,
			&e.Video.CreatedAt,
			&e.Owner.Username,
			&e.Owner.FullName,
			&e.Owner.AvatarURL,
			&e.WatchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		history = append(history, e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}

	return history, nil
}

// ToggleVideoLike flips the like state for (user, video) and reports the
// resulting state. The primary key on likes keeps the pair unique; the
// insert-or-delete below stays correct under concurrent toggles.
func (r *PostgresRepo) ToggleVideoLike(ctx context.Context, userID, videoID int64) (bool, error) {
	const op = "storage.postgres.ToggleVideoLike"

	var exists bool

	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1)`, videoID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return false, storage.ErrVideoNotFound
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO likes (user_id, video_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, video_id) DO NOTHING
	`, userID, videoID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 1 {
		return true, nil
	}

	_, err = r.pool.Exec(ctx,
		`DELETE FROM likes WHERE user_id = $1 AND video_id = $2`, userID, videoID,
	)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return false, nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

// * dsn формирует конфигурацию базы данных.
func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chetan-code/taskboard/internal/models"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var ErrChallengeNotFound = errors.New("login challenge not found")

// ChallengeStore keeps pending login challenges between the two login steps.
type ChallengeStore interface {
	Save(ctx context.Context, c models.Challenge) error
	Fetch(ctx context.Context, id string) (models.Challenge, error)
	Delete(ctx context.Context, id string) error
}

// ChallengeRepo stores challenges in postgres (driver "pgx") or sqlite
// (driver "sqlite") so several front-end instances can share them.
type ChallengeRepo struct {
	db     *sql.DB
	driver string
	ttl    time.Duration
	now    func() time.Time
}

func OpenChallengeRepo(driver, url string, ttl time.Duration) (*ChallengeRepo, error) {
	if driver != "pgx" && driver != "sqlite" {
		return nil, fmt.Errorf("unsupported challenge db driver %q", driver)
	}
	db, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("open challenge db: %w", err)
	}

	//check if connection is alive
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping challenge db: %w", err)
	}

	repo, err := NewChallengeRepo(db, driver, ttl)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func NewChallengeRepo(db *sql.DB, driver string, ttl time.Duration) (*ChallengeRepo, error) {
	repo := &ChallengeRepo{db: db, driver: driver, ttl: ttl, now: time.Now}

	err := repo.CreateTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("could not initialize table: %w", err)
	}

	return repo, nil
}

func (r *ChallengeRepo) Close() error {
	return r.db.Close()
}

func (r *ChallengeRepo) CreateTable(ctx context.Context) error {
	createTableQuery := `CREATE TABLE IF NOT EXISTS login_challenges(
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		code TEXT NOT NULL,
		created_at BIGINT NOT NULL
	);`
	_, err := r.db.ExecContext(ctx, createTableQuery)
	return err
}

// rebind turns $n placeholders into ? for sqlite. Arguments are always
// passed in placeholder order.
func (r *ChallengeRepo) rebind(query string) string {
	if r.driver != "sqlite" {
		return query
	}
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '$' {
			b.WriteByte('?')
			for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
				i++
			}
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (r *ChallengeRepo) Save(ctx context.Context, c models.Challenge) error {
	if r.ttl > 0 {
		cutoff := r.now().Add(-r.ttl).UnixNano()
		if _, err := r.db.ExecContext(ctx, r.rebind("DELETE FROM login_challenges WHERE created_at < $1"), cutoff); err != nil {
			slog.Warn("challenge_sweep_failed", "error", err)
		}
	}

	query := "INSERT INTO login_challenges (id, email, code, created_at) VALUES ($1, $2, $3, $4)"
	_, err := r.db.ExecContext(ctx, r.rebind(query), c.ID, c.Email, c.Code, c.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save challenge: %w", err)
	}
	return nil
}

func (r *ChallengeRepo) Fetch(ctx context.Context, id string) (models.Challenge, error) {
	query := "SELECT id, email, code, created_at FROM login_challenges WHERE id = $1"
	var c models.Challenge
	var created int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(&c.ID, &c.Email, &c.Code, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Challenge{}, ErrChallengeNotFound
	}
	if err != nil {
		return models.Challenge{}, fmt.Errorf("fetch challenge: %w", err)
	}
	c.CreatedAt = time.Unix(0, created)

	if c.Expired(r.now(), r.ttl) {
		_ = r.Delete(ctx, id)
		return models.Challenge{}, ErrChallengeNotFound
	}
	return c, nil
}

func (r *ChallengeRepo) Delete(ctx context.Context, id string) error {
	query := "DELETE FROM login_challenges WHERE id = $1"
	_, err := r.db.ExecContext(ctx, r.rebind(query), id)
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

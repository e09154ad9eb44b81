package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ksenkin/tradediary/internal/domain"
)

// ProfileStore implements domain.ProfileStore using PostgreSQL.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore creates a new ProfileStore backed by the given pool.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

const profileSelectCols = `id, public_id, exchange, api_key, api_secret,
	passphrase, base_url, recv_window, last_sync_at, created_at`

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.ID, &p.PublicID, &p.Exchange, &p.APIKey, &p.APISecret,
		&p.Passphrase, &p.BaseURL, &p.RecvWindow, &p.LastSyncAt, &p.CreatedAt,
	)
	if err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

// Create inserts the profile and assigns its database ID.
func (s *ProfileStore) Create(ctx context.Context, p *domain.Profile) error {
	const query = `
		INSERT INTO profiles (
			public_id, exchange, api_key, api_secret,
			passphrase, base_url, recv_window, last_sync_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := s.pool.QueryRow(ctx, query,
		p.PublicID, p.Exchange, p.APIKey, p.APISecret,
		p.Passphrase, p.BaseURL, p.RecvWindow, p.LastSyncAt, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("postgres: create profile: %w", err)
	}
	return nil
}

// Update replaces the mutable credential fields of a profile.
func (s *ProfileStore) Update(ctx context.Context, p domain.Profile) error {
	const query = `
		UPDATE profiles SET
			api_secret  = $2,
			passphrase  = $3,
			base_url    = $4,
			recv_window = $5
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		p.ID, p.APISecret, p.Passphrase, p.BaseURL, p.RecvWindow)
	if err != nil {
		return fmt.Errorf("postgres: update profile %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID retrieves a profile by its database ID.
func (s *ProfileStore) GetByID(ctx context.Context, id int64) (domain.Profile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+profileSelectCols+` FROM profiles WHERE id = $1`, id)

	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("postgres: get profile %d: %w", id, err)
	}
	return p, nil
}

// GetByToken retrieves a profile by its public bearer token.
func (s *ProfileStore) GetByToken(ctx context.Context, publicID string) (domain.Profile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+profileSelectCols+` FROM profiles WHERE public_id = $1`, publicID)

	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("postgres: get profile by token: %w", err)
	}
	return p, nil
}

// GetByAPIKey looks up the profile registered for an exchange API key.
func (s *ProfileStore) GetByAPIKey(ctx context.Context, exchange, apiKey string) (domain.Profile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+profileSelectCols+` FROM profiles WHERE exchange = $1 AND api_key = $2`,
		exchange, apiKey)

	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("postgres: get profile by api key: %w", err)
	}
	return p, nil
}

// SetLastSync records the finish time of the latest successful sync.
func (s *ProfileStore) SetLastSync(ctx context.Context, id, syncedAtMs int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET last_sync_at = $2 WHERE id = $1`, id, syncedAtMs)
	if err != nil {
		return fmt.Errorf("postgres: set last sync %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns every registered profile, oldest first.
func (s *ProfileStore) List(ctx context.Context) ([]domain.Profile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+profileSelectCols+` FROM profiles ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

var _ domain.ProfileStore = (*ProfileStore)(nil)

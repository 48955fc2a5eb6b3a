package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/david/bid-filter/internal/models"
	"github.com/david/bid-filter/internal/persist"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const selectCols = `id, title, naics, set_aside, vehicle, agency, status,
	due_date, ceiling, percent_complete, fit_score, keywords`

func scanOpportunity(scan func(dest ...any) error) (models.Opportunity, error) {
	var o models.Opportunity
	err := scan(
		&o.ID, &o.Title, &o.NAICS, &o.SetAside, &o.Vehicle, &o.Agency, &o.Status,
		&o.DueDate, &o.Ceiling, &o.PercentComplete, &o.FitScore, &o.Keywords,
	)
	if err != nil {
		return o, err
	}
	o.DueDate = o.DueDate.UTC()
	return o, nil
}

// LoadOpportunities returns the whole dataset in due-date order.
func (s *Store) LoadOpportunities(ctx context.Context) ([]models.Opportunity, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM opportunities ORDER BY due_date, id`, selectCols))
	if err != nil {
		return nil, fmt.Errorf("query opportunities: %w", err)
	}
	defer rows.Close()

	var out []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpsertOpportunities writes records in one batch, replacing rows with the
// same id.
func (s *Store) UpsertOpportunities(ctx context.Context, records []models.Opportunity) error {
	batch := &pgx.Batch{}
	for _, o := range records {
		batch.Queue(`
			INSERT INTO opportunities (id, title, naics, set_aside, vehicle, agency, status,
				due_date, ceiling, percent_complete, fit_score, keywords)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				naics = EXCLUDED.naics,
				set_aside = EXCLUDED.set_aside,
				vehicle = EXCLUDED.vehicle,
				agency = EXCLUDED.agency,
				status = EXCLUDED.status,
				due_date = EXCLUDED.due_date,
				ceiling = EXCLUDED.ceiling,
				percent_complete = EXCLUDED.percent_complete,
				fit_score = EXCLUDED.fit_score,
				keywords = EXCLUDED.keywords
		`, o.ID, o.Title, o.NAICS, nonNil(o.SetAside), o.Vehicle, o.Agency, o.Status,
			o.DueDate, o.Ceiling, o.PercentComplete, o.FitScore, nonNil(o.Keywords))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert opportunities: %w", err)
	}
	return nil
}

// MarkSubmitted mirrors dataset.Catalog.MarkSubmitted into the table.
func (s *Store) MarkSubmitted(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE opportunities SET status = $2, percent_complete = 100 WHERE id = $1`,
		id, models.StatusSubmitted)
	if err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark submitted %s: %w", id, pgx.ErrNoRows)
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// SnapshotStore keeps durable filter slots per profile in filter_snapshots.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// ForProfile returns the durable channel scoped to one profile.
func (s *SnapshotStore) ForProfile(profileID uuid.UUID) *ProfileSnapshots {
	return &ProfileSnapshots{pool: s.pool, profileID: profileID}
}

// Snapshot is one stored slot, used by reporting tools.
type Snapshot struct {
	ProfileID uuid.UUID
	Slot      string
	Payload   []byte
	UpdatedAt time.Time
}

// ListSnapshots returns stored slots, newest first. A nil profileID lists
// every profile.
func (s *SnapshotStore) ListSnapshots(ctx context.Context, profileID *uuid.UUID, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT profile_id, slot, payload, updated_at FROM filter_snapshots`
	args := []any{}
	if profileID != nil {
		query += ` WHERE profile_id = $1`
		args = append(args, *profileID)
	}
	query += fmt.Sprintf(` ORDER BY updated_at DESC LIMIT %d`, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ProfileID, &snap.Slot, &snap.Payload, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// ProfileSnapshots implements persist.DurableChannel on Postgres.
type ProfileSnapshots struct {
	pool      *pgxpool.Pool
	profileID uuid.UUID
}

var _ persist.DurableChannel = (*ProfileSnapshots)(nil)

func (p *ProfileSnapshots) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := p.pool.QueryRow(ctx,
		`SELECT payload FROM filter_snapshots WHERE profile_id = $1 AND slot = $2`,
		p.profileID, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, persist.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", key, err)
	}
	return payload, nil
}

func (p *ProfileSnapshots) Put(ctx context.Context, key string, data []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO filter_snapshots (profile_id, slot, payload, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (profile_id, slot) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
	`, p.profileID, key, data)
	if err != nil {
		return fmt.Errorf("write snapshot %s: %w", key, err)
	}
	return nil
}

func (p *ProfileSnapshots) Delete(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx,
		`DELETE FROM filter_snapshots WHERE profile_id = $1 AND slot = $2`,
		p.profileID, key); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", key, err)
	}
	return nil
}

package store

import (
	"context"
	"time"

	"github.com/example/shift-sniper/internal/db"
	"github.com/example/shift-sniper/internal/race"
)

// Account is a stored ShiftHeroes account. The bearer token is encrypted at
// rest; only the ciphertext ever touches the database.
type Account struct {
	ID              int64
	Label           string
	TokenCiphertext string
	PlanningID      string
	PlanningType    string
	Quota           int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RaceRecord is one finished race, kept for the history view. Records are
// write-once: the run writes them after the coordinator joins, nothing reads
// them back into race state.
type RaceRecord struct {
	ID           int64
	AccountLabel string
	PlanningID   string
	Phase        string
	Confirmed    int
	Elapsed      time.Duration
	PublishedAt  *time.Time
	LastError    *string
	StartedAt    time.Time
	CreatedAt    time.Time
}

type Repo struct {
	db *db.DB
}

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) CreateAccount(ctx context.Context, a Account) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
INSERT INTO accounts(label, token_ciphertext, planning_id, planning_type, quota)
VALUES ($1,$2,$3,$4,$5)
RETURNING id`,
		a.Label, a.TokenCiphertext, a.PlanningID, a.PlanningType, a.Quota,
	).Scan(&id)
	return id, db.WrapNotFound(err)
}

func (r *Repo) GetAccountByLabel(ctx context.Context, label string) (Account, error) {
	var a Account
	err := r.db.QueryRow(ctx, `
SELECT id, label, token_ciphertext, planning_id, planning_type, quota, created_at, updated_at
FROM accounts WHERE label=$1`, label).
		Scan(&a.ID, &a.Label, &a.TokenCiphertext, &a.PlanningID, &a.PlanningType, &a.Quota, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Account{}, db.WrapNotFound(err)
	}
	return a, nil
}

func (r *Repo) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, label, token_ciphertext, planning_id, planning_type, quota, created_at, updated_at
FROM accounts ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Label, &a.TokenCiphertext, &a.PlanningID, &a.PlanningType, &a.Quota, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecordRace persists one per-pair result after a run.
func (r *Repo) RecordRace(ctx context.Context, startedAt time.Time, res race.Result) error {
	var publishedAt *time.Time
	if !res.PublishedAt.IsZero() {
		t := res.PublishedAt
		publishedAt = &t
	}
	var lastErr *string
	if res.Err != nil {
		s := res.Err.Error()
		lastErr = &s
	}
	return r.db.Exec(ctx, `
INSERT INTO races(account_label, planning_id, phase, confirmed, elapsed_ms, published_at, last_error, started_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		res.Account, res.PlanningID, string(res.Phase), res.Confirmed,
		res.Elapsed.Milliseconds(), publishedAt, lastErr, startedAt,
	)
}

func (r *Repo) ListRaces(ctx context.Context, limit int) ([]RaceRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
SELECT id, account_label, planning_id, phase, confirmed, elapsed_ms, published_at, last_error, started_at, created_at
FROM races ORDER BY started_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RaceRecord
	for rows.Next() {
		var rec RaceRecord
		var elapsedMS int64
		if err := rows.Scan(&rec.ID, &rec.AccountLabel, &rec.PlanningID, &rec.Phase, &rec.Confirmed,
			&elapsedMS, &rec.PublishedAt, &rec.LastError, &rec.StartedAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/solaradvisor/solaradvisor/pkg/recommend"
)

// ErrNotFound is returned when a recommendation id is unknown.
var ErrNotFound = errors.New("recommendation not found")

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

type recommendationRow struct {
	ID        string `db:"id"`
	Kind      string `db:"kind"`
	Location  string `db:"location"`
	Summary   string `db:"summary"`
	Payload   string `db:"payload"`
	CreatedAt int64  `db:"created_at"`
}

// History persists assembled recommendations. Writes go through the async
// Writer when one is set, so the request path never waits on SQLite.
type History struct {
	db     *sqlx.DB
	writer *Writer
	log    logr.Logger
}

// NewHistory creates a History. writer may be nil for synchronous writes.
func NewHistory(db *DB, writer *Writer) *History {
	return &History{db: db.X(), writer: writer, log: logr.Discard()}
}

// WithLogger sets the logger used for failed synchronous saves.
func (h *History) WithLogger(log logr.Logger) *History {
	h.log = log
	return h
}

// Save assigns rec an ID if it has none and queues it for persistence.
// It returns the ID.
func (h *History) Save(rec *recommend.Recommendation) string {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	snapshot := *rec
	write := func(db *sqlx.DB) error {
		return insertRecommendation(context.Background(), db, &snapshot)
	}
	if h.writer == nil {
		if err := write(h.db); err != nil {
			h.log.Error(err, "Saving recommendation failed", "id", rec.ID)
		}
	} else {
		h.writer.Enqueue(write)
	}
	return rec.ID
}

// Insert writes rec synchronously.
func (h *History) Insert(ctx context.Context, rec *recommend.Recommendation) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	return insertRecommendation(ctx, h.db, rec)
}

func insertRecommendation(ctx context.Context, db *sqlx.DB, rec *recommend.Recommendation) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding recommendation %s: %w", rec.ID, err)
	}
	_, err = db.NamedExecContext(ctx,
		`INSERT OR REPLACE INTO recommendations (id, kind, location, summary, payload, created_at)
		 VALUES (:id, :kind, :location, :summary, :payload, :created_at)`,
		recommendationRow{
			ID:        rec.ID,
			Kind:      string(rec.Kind),
			Location:  rec.Location,
			Summary:   rec.Summary,
			Payload:   string(payload),
			CreatedAt: rec.CreatedAt.Unix(),
		},
	)
	if err != nil {
		return fmt.Errorf("inserting recommendation %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns the recommendation with the given id.
func (h *History) Get(ctx context.Context, id string) (*recommend.Recommendation, error) {
	var row recommendationRow
	err := h.db.GetContext(ctx, &row, "SELECT * FROM recommendations WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading recommendation %s: %w", id, err)
	}
	return decodeRow(row)
}

// List returns up to limit recommendations, newest first. limit is clamped
// to [1, MaxListLimit]; zero means DefaultListLimit.
func (h *History) List(ctx context.Context, limit int) ([]*recommend.Recommendation, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	var rows []recommendationRow
	if err := h.db.SelectContext(ctx, &rows,
		"SELECT * FROM recommendations ORDER BY created_at DESC, id LIMIT ?", limit); err != nil {
		return nil, fmt.Errorf("listing recommendations: %w", err)
	}
	out := make([]*recommend.Recommendation, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Count returns the number of stored recommendations.
func (h *History) Count(ctx context.Context) (int, error) {
	var n int
	if err := h.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM recommendations"); err != nil {
		return 0, fmt.Errorf("counting recommendations: %w", err)
	}
	return n, nil
}

func decodeRow(row recommendationRow) (*recommend.Recommendation, error) {
	var rec recommend.Recommendation
	if err := json.Unmarshal([]byte(row.Payload), &rec); err != nil {
		return nil, fmt.Errorf("decoding recommendation %s: %w", row.ID, err)
	}
	return &rec, nil
}

// Package store persists layouts, review items and their transition history
// in SQLite. It implements router.Journal, so every review operation is
// written through in one transaction before the router commits to it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dshills/floorplan/internal/apperr"
	"github.com/dshills/floorplan/internal/layout"
	"github.com/dshills/floorplan/internal/router"
	"github.com/dshills/floorplan/internal/verdict"
)

// DefaultPath is the database location relative to the working directory.
const DefaultPath = ".floorplan/floorplan.db"

const timeFormat = time.RFC3339Nano

// Store is a SQLite-backed repository.
type Store struct {
	DB      *sql.DB
	Version int

	// MaxWorkload caps the IN_REVIEW items one reviewer may hold across
	// every process sharing the database. Zero disables the check.
	MaxWorkload int
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store.Open: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store.Open: %w", err)
	}
	db.SetMaxOpenConns(1)

	v, err := migrate(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store.Open: migrate %s: %w", path, err)
	}
	return &Store{DB: db, Version: v}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.DB.Close() }

// LayoutRecord is a stored layout with its validation result.
type LayoutRecord struct {
	ID           string
	Hash         string
	Region       string
	BuildingType string
	Provider     string
	IsFallback   bool
	Layout       *layout.Layout
	Result       verdict.Result
	Request      json.RawMessage
	CreatedAt    time.Time
}

// SaveLayout inserts or replaces a layout record.
func (s *Store) SaveLayout(ctx context.Context, rec LayoutRecord) error {
	if rec.ID == "" {
		return apperr.New(apperr.CodeInvalidRequest, "layout id is required")
	}
	if rec.Hash == "" {
		rec.Hash = layout.Hash(rec.Layout)
	}
	lj, err := json.Marshal(rec.Layout)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}
	rj, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	var req any
	if len(rec.Request) > 0 {
		req = string(rec.Request)
	}
	_, err = s.DB.ExecContext(ctx, `INSERT INTO layouts(id,hash,region,building_type,provider,is_fallback,status,layout_json,result_json,request_json,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET hash=excluded.hash, region=excluded.region, building_type=excluded.building_type,
  provider=excluded.provider, is_fallback=excluded.is_fallback, status=excluded.status,
  layout_json=excluded.layout_json, result_json=excluded.result_json, request_json=excluded.request_json`,
		rec.ID, rec.Hash, rec.Region, rec.BuildingType, rec.Provider, rec.IsFallback, string(rec.Result.Status),
		string(lj), string(rj), req, rec.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("save layout %s: %w", rec.ID, err)
	}
	return nil
}

// GetLayout loads one layout record.
func (s *Store) GetLayout(ctx context.Context, id string) (LayoutRecord, error) {
	var (
		rec     LayoutRecord
		lj, rj  string
		req     sql.NullString
		created string
	)
	err := s.DB.QueryRowContext(ctx, `SELECT id,hash,region,building_type,provider,is_fallback,layout_json,result_json,request_json,created_at
FROM layouts WHERE id=?`, id).Scan(&rec.ID, &rec.Hash, &rec.Region, &rec.BuildingType, &rec.Provider, &rec.IsFallback,
		&lj, &rj, &req, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return LayoutRecord{}, apperr.New(apperr.CodeNotFound, "layout %s", id)
	}
	if err != nil {
		return LayoutRecord{}, fmt.Errorf("get layout %s: %w", id, err)
	}
	if rec.Layout, err = layout.Parse([]byte(lj)); err != nil {
		return LayoutRecord{}, fmt.Errorf("get layout %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(rj), &rec.Result); err != nil {
		return LayoutRecord{}, fmt.Errorf("get layout %s: decode result: %w", id, err)
	}
	if req.Valid {
		rec.Request = json.RawMessage(req.String)
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return LayoutRecord{}, fmt.Errorf("get layout %s: %w", id, err)
	}
	return rec, nil
}

// SaveItem inserts or updates a review item.
func (s *Store) SaveItem(ctx context.Context, it router.ReviewItem) error {
	return saveItem(ctx, s.DB, it)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveItem(ctx context.Context, db execer, it router.ReviewItem) error {
	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("marshal review item: %w", err)
	}
	_, err = db.ExecContext(ctx, `INSERT INTO review_items(id,layout_id,status,priority,reviewer_id,updated_at,item_json)
VALUES (?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET status=excluded.status, priority=excluded.priority,
  reviewer_id=excluded.reviewer_id, updated_at=excluded.updated_at, item_json=excluded.item_json`,
		it.ID, it.LayoutID, string(it.Status), string(it.Priority), nullable(it.ReviewerID),
		it.UpdatedAt.UTC().Format(timeFormat), string(data))
	if err != nil {
		return fmt.Errorf("save review item %s: %w", it.ID, err)
	}
	return nil
}

// ListItems returns every stored review item ordered by id.
func (s *Store) ListItems(ctx context.Context) ([]router.ReviewItem, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT item_json FROM review_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list review items: %w", err)
	}
	defer rows.Close()

	var items []router.ReviewItem
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var it router.ReviewItem
		if err := json.Unmarshal([]byte(data), &it); err != nil {
			return nil, fmt.Errorf("decode review item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// DeleteItems removes review items and their events.
func (s *Store) DeleteItems(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `DELETE FROM review_items WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	res, err := s.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("delete review items: %w", err)
	}
	return res.RowsAffected()
}

// Event is one recorded review transition.
type Event struct {
	ID         int64
	ItemID     string
	From       router.Status
	To         router.Status
	ReviewerID string
	At         time.Time
}

var _ router.Journal = (*Store)(nil)

// Record persists every transition of one router operation in a single write
// transaction. Each transition must start from the status stored for its
// item, and an assignment must keep the reviewer within MaxWorkload. When
// another process changed the queue since it was loaded, nothing is written
// and the error carries apperr.CodeConflict.
func (s *Store) Record(ctx context.Context, trs []router.Transition) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin review transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range trs {
		if err := s.checkTransition(ctx, tx, t); err != nil {
			return err
		}
		if err := saveItem(ctx, tx, t.Item); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO review_events(item_id,from_status,to_status,reviewer_id,ts) VALUES (?,?,?,?,?)`,
			t.Item.ID, nullable(string(t.From)), string(t.Item.Status), nullable(t.Item.ReviewerID),
			t.At.UTC().Format(timeFormat))
		if err != nil {
			return fmt.Errorf("append review event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit review transaction: %w", err)
	}
	return nil
}

func (s *Store) checkTransition(ctx context.Context, tx *sql.Tx, t router.Transition) error {
	var stored string
	err := tx.QueryRowContext(ctx, `SELECT status FROM review_items WHERE id=?`, t.Item.ID).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read review item %s: %w", t.Item.ID, err)
	}
	if router.Status(stored) != t.From {
		return apperr.New(apperr.CodeConflict, "review item %s is %q in the store, expected %q", t.Item.ID, stored, t.From)
	}

	if s.MaxWorkload < 1 || t.Item.Status != router.StatusInReview || t.Item.ReviewerID == "" {
		return nil
	}
	var held int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM review_items WHERE status=? AND reviewer_id=? AND id<>?`,
		string(router.StatusInReview), t.Item.ReviewerID, t.Item.ID).Scan(&held)
	if err != nil {
		return fmt.Errorf("count workload of %s: %w", t.Item.ReviewerID, err)
	}
	if held >= s.MaxWorkload {
		return apperr.New(apperr.CodeConflict, "reviewer %s already holds %d items in review (max %d)",
			t.Item.ReviewerID, held, s.MaxWorkload)
	}
	return nil
}

// Events returns the transition history of one item, oldest first.
func (s *Store) Events(ctx context.Context, itemID string) ([]Event, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id,item_id,COALESCE(from_status,''),to_status,COALESCE(reviewer_id,''),ts
FROM review_events WHERE item_id=? ORDER BY id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list review events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e        Event
			from, to string
			ts       string
		)
		if err := rows.Scan(&e.ID, &e.ItemID, &from, &to, &e.ReviewerID, &ts); err != nil {
			return nil, err
		}
		e.From, e.To = router.Status(from), router.Status(to)
		if e.At, err = parseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

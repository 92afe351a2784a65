// Package store provides SQLite persistence for Momentum.
//
// The store holds the alert audit log, the learned topic weights, and the
// creator's posting activity. Rate limiting and learning both derive from
// these tables, never from in-process counters, so a restart cannot reset
// the daily cap or the cooldown clock.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Response is the recorded outcome of a dispatched alert.
type Response string

const (
	ResponseNone          Response = "none"
	ResponseUsed          Response = "used"
	ResponseNotInterested Response = "not_interested"
	ResponseRemindLater   Response = "remind_later"
	ResponseReminded      Response = "reminded"
	ResponseExpired       Response = "expired"
	ResponsePostedAnyway  Response = "posted_anyway"
)

// Terminal reports whether r can never transition again.
// remind_later is the single intermediate state; none is the initial state.
func (r Response) Terminal() bool {
	switch r {
	case ResponseUsed, ResponseNotInterested, ResponseReminded, ResponseExpired, ResponsePostedAnyway:
		return true
	}
	return false
}

// AlertRecord is one dispatched golden moment alert.
// Created exactly once, on confirmed delivery.
type AlertRecord struct {
	ID            string
	SourceID      string
	TopicText     string
	Summary       string
	WeightedScore float64
	DiscoveredAt  time.Time // when the underlying event was discovered upstream
	DispatchedAt  time.Time
	Response      Response
	RespondedAt   time.Time // zero until a response is recorded
}

// TopicWeight is a learned per-keyword score multiplier, bounded to [0.3, 2.0].
type TopicWeight struct {
	Topic        string
	Weight       float64
	TimesAlerted int
	TimesUsed    int
	TimesIgnored int
	LastUpdated  time.Time
}

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
// The write lock is also the serialization point for the dispatch commit.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// For in-memory databases, use shared cache mode so all connections
		// in the pool see the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		topic_text TEXT NOT NULL,
		summary TEXT,
		weighted_score REAL NOT NULL,
		discovered_at DATETIME NOT NULL,
		dispatched_at DATETIME NOT NULL,
		response TEXT NOT NULL DEFAULT 'none',
		responded_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_dispatched ON alerts(dispatched_at DESC);
	CREATE INDEX IF NOT EXISTS idx_alerts_source ON alerts(source_id);
	CREATE INDEX IF NOT EXISTS idx_alerts_response ON alerts(response);

	CREATE TABLE IF NOT EXISTS topic_weights (
		topic TEXT PRIMARY KEY,
		weight REAL NOT NULL DEFAULT 1.0,
		times_alerted INTEGER NOT NULL DEFAULT 0,
		times_used INTEGER NOT NULL DEFAULT 0,
		times_ignored INTEGER NOT NULL DEFAULT 0,
		last_updated DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		platform TEXT NOT NULL,
		posted_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_posted ON posts(posted_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// InsertAlert records a dispatched alert. Called only after confirmed delivery.
func (s *Store) InsertAlert(rec AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Response == "" {
		rec.Response = ResponseNone
	}

	_, err := s.db.Exec(`
		INSERT INTO alerts (id, source_id, topic_text, summary, weighted_score, discovered_at, dispatched_at, response, responded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.SourceID, rec.TopicText, rec.Summary, rec.WeightedScore,
		rec.DiscoveredAt, rec.DispatchedAt, string(rec.Response), nullTime(rec.RespondedAt))
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// CountAlertsSince returns the number of alerts dispatched at or after cutoff.
// This is the trailing-24h cap query.
func (s *Store) CountAlertsSince(cutoff time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM alerts WHERE dispatched_at >= ?", cutoff).Scan(&count)
	return count, err
}

// LastDispatchTime returns the most recent dispatch time across all alerts,
// or the zero time if none exist.
func (s *Store) LastDispatchTime() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// ORDER BY + LIMIT rather than MAX(): aggregating strips the column's
	// DATETIME affinity and the driver hands back an unscannable TEXT value.
	var t time.Time
	err := s.db.QueryRow("SELECT dispatched_at FROM alerts ORDER BY dispatched_at DESC LIMIT 1").Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// AlertedSourceIDs returns the set of source ids alerted at or after cutoff.
// Used by the scorer to dedup candidates that already produced an alert.
func (s *Store) AlertedSourceIDs(cutoff time.Time) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT source_id FROM alerts WHERE dispatched_at >= ?", cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// LatestOpenAlert returns the most recently dispatched alert whose response
// is still none or remind_later, or nil if no alert is awaiting a response.
func (s *Store) LatestOpenAlert() (*AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, source_id, topic_text, summary, weighted_score, discovered_at, dispatched_at, response, responded_at
		FROM alerts
		WHERE response IN ('none', 'remind_later')
		ORDER BY dispatched_at DESC
		LIMIT 1
	`)
	rec, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ErrAlreadyResolved is returned by SetResponse when the alert has already
// reached a terminal response (or does not exist).
var ErrAlreadyResolved = errors.New("alert response already resolved")

// SetResponse transitions an alert's response state and stamps responded_at.
// The update is a compare-and-swap against the open states, so a reply and
// a sweep racing on the same record cannot both win: a record leaves
// remind_later at most once, and a terminal record never transitions again.
func (s *Store) SetResponse(id string, resp Response, respondedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE alerts SET response = ?, responded_at = ?
		WHERE id = ? AND response IN ('none', 'remind_later')
	`, string(resp), respondedAt, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

// RemindLaterBetween returns remind_later alerts whose responded_at falls in
// [oldest, newest]. The sweep uses a 30-60 minute bracket so each record is
// inspected at most once.
func (s *Store) RemindLaterBetween(oldest, newest time.Time) ([]AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, source_id, topic_text, summary, weighted_score, discovered_at, dispatched_at, response, responded_at
		FROM alerts
		WHERE response = 'remind_later' AND responded_at >= ? AND responded_at <= ?
		ORDER BY responded_at ASC
	`, oldest, newest)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []AlertRecord
	for rows.Next() {
		rec, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// RecentAlerts returns the latest alerts, newest first.
func (s *Store) RecentAlerts(limit int) ([]AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, source_id, topic_text, summary, weighted_score, discovered_at, dispatched_at, response, responded_at
		FROM alerts
		ORDER BY dispatched_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []AlertRecord
	for rows.Next() {
		rec, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// ResponseCounts returns alert counts grouped by response state.
func (s *Store) ResponseCounts() (map[Response]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT response, COUNT(*) FROM alerts GROUP BY response")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Response]int)
	for rows.Next() {
		var resp string
		var n int
		if err := rows.Scan(&resp, &n); err != nil {
			return nil, err
		}
		counts[Response(resp)] = n
	}
	return counts, rows.Err()
}

// GetTopicWeight fetches one topic weight, or nil if the topic is unknown.
func (s *Store) GetTopicWeight(topic string) (*TopicWeight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w TopicWeight
	err := s.db.QueryRow(`
		SELECT topic, weight, times_alerted, times_used, times_ignored, last_updated
		FROM topic_weights WHERE topic = ?
	`, topic).Scan(&w.Topic, &w.Weight, &w.TimesAlerted, &w.TimesUsed, &w.TimesIgnored, &w.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// UpsertTopicWeight writes a topic weight row, replacing any existing row.
func (s *Store) UpsertTopicWeight(w TopicWeight) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO topic_weights (topic, weight, times_alerted, times_used, times_ignored, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(topic) DO UPDATE SET
			weight = excluded.weight,
			times_alerted = excluded.times_alerted,
			times_used = excluded.times_used,
			times_ignored = excluded.times_ignored,
			last_updated = excluded.last_updated
	`, w.Topic, w.Weight, w.TimesAlerted, w.TimesUsed, w.TimesIgnored, w.LastUpdated)
	return err
}

// AllTopicWeights returns every learned topic weight.
func (s *Store) AllTopicWeights() ([]TopicWeight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT topic, weight, times_alerted, times_used, times_ignored, last_updated
		FROM topic_weights ORDER BY topic
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var weights []TopicWeight
	for rows.Next() {
		var w TopicWeight
		if err := rows.Scan(&w.Topic, &w.Weight, &w.TimesAlerted, &w.TimesUsed, &w.TimesIgnored, &w.LastUpdated); err != nil {
			return nil, err
		}
		weights = append(weights, w)
	}
	return weights, rows.Err()
}

// RecordPost logs creator posting activity. Written by the external activity
// tracker; read by the gate's already-satisfied check.
func (s *Store) RecordPost(platform string, postedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("INSERT INTO posts (platform, posted_at) VALUES (?, ?)", platform, postedAt)
	return err
}

// LastPostTime returns the creator's most recent tracked post time,
// or the zero time if none exist.
func (s *Store) LastPostTime() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t time.Time
	err := s.db.QueryRow("SELECT posted_at FROM posts ORDER BY posted_at DESC LIMIT 1").Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(sc scanner) (*AlertRecord, error) {
	var rec AlertRecord
	var resp string
	var respondedAt sql.NullTime
	err := sc.Scan(
		&rec.ID,
		&rec.SourceID,
		&rec.TopicText,
		&rec.Summary,
		&rec.WeightedScore,
		&rec.DiscoveredAt,
		&rec.DispatchedAt,
		&resp,
		&respondedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Response = Response(resp)
	if respondedAt.Valid {
		rec.RespondedAt = respondedAt.Time
	}
	return &rec, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

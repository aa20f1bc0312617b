package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	"github.com/harun/engram/internal/observability"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

// Config holds store configuration.
type Config struct {
	// Path is the SQLite database file. One file holds every table, so
	// the deployment can be backed up by copying it as a unit.
	Path string

	// Dimension is the embedding dimension D. Every stored vector must
	// match it exactly.
	Dimension int

	Logger zerolog.Logger
}

// Store is the durable source of truth for records, episodes, causal
// links, association edges, and the co-activation event log.
//
// All mutations run as short transactions; writers are serialized by an
// internal mutex so reads interleave cleanly between writes.
type Store struct {
	db     *sql.DB
	dim    int
	logger zerolog.Logger

	writeMu  sync.Mutex
	revision atomic.Int64
}

// New opens (or creates) the store file and initializes the schema.
func New(cfg Config) (*Store, error) {
	observability.EnsureRegistered()

	if cfg.Path == "" {
		return nil, errors.New("store path is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("embedding dimension must be positive")
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_fk=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:     db,
		dim:    cfg.Dimension,
		logger: cfg.Logger,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Info().Str("path", cfg.Path).Int("dimension", cfg.Dimension).Msg("Memory store opened")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			emotion TEXT NOT NULL DEFAULT 'neutral',
			category TEXT NOT NULL DEFAULT 'daily',
			importance INTEGER NOT NULL DEFAULT 3,
			tags TEXT NOT NULL DEFAULT '',
			episode_id TEXT,
			media TEXT,
			camera_pose TEXT,
			created_at INTEGER NOT NULL,
			last_accessed INTEGER NOT NULL DEFAULT 0,
			access_count INTEGER NOT NULL DEFAULT 0,
			activation_count INTEGER NOT NULL DEFAULT 0,
			last_activated INTEGER NOT NULL DEFAULT 0,
			novelty_score REAL NOT NULL DEFAULT 0,
			prediction_error REAL NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_records_emotion    ON records(emotion);
		CREATE INDEX IF NOT EXISTS idx_records_category   ON records(category);
		CREATE INDEX IF NOT EXISTS idx_records_created    ON records(created_at);
		CREATE INDEX IF NOT EXISTS idx_records_importance ON records(importance);

		CREATE TABLE IF NOT EXISTS links (
			source_id TEXT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
			target_id TEXT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
			link_type TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			PRIMARY KEY (source_id, target_id, link_type)
		);
		CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_id);

		CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			member_ids TEXT NOT NULL DEFAULT '',
			participants TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			emotion TEXT NOT NULL DEFAULT 'neutral',
			importance INTEGER NOT NULL DEFAULT 3,
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS associations (
			low_id  TEXT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
			high_id TEXT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
			strength REAL NOT NULL CHECK(strength >= 0.0),
			PRIMARY KEY (low_id, high_id)
		);
		CREATE INDEX IF NOT EXISTS idx_assoc_high ON associations(high_id);

		CREATE TABLE IF NOT EXISTS coactivation_events (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_coact_created ON coactivation_events(created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	vectorSchema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS embeddings USING vec0(
			record_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, s.dim)

	if _, err := s.db.Exec(vectorSchema); err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.logger.Info().Msg("Closing memory store")
	return s.db.Close()
}

// Dimension returns the configured embedding dimension D.
func (s *Store) Dimension() int {
	return s.dim
}

// Revision increments on every content mutation. The lexical index uses
// it to decide when a rebuild is due.
func (s *Store) Revision() int64 {
	return s.revision.Load()
}

func (s *Store) validateDraft(d Draft) error {
	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("%w: content must not be empty", ErrValidation)
	}
	if len(d.Embedding) != s.dim {
		return fmt.Errorf("%w: embedding dimension %d, want %d", ErrValidation, len(d.Embedding), s.dim)
	}
	if !d.Emotion.Valid() {
		return fmt.Errorf("%w: unknown emotion %q", ErrValidation, d.Emotion)
	}
	if !d.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, d.Category)
	}
	if d.Importance < MinImportance || d.Importance > MaxImportance {
		return fmt.Errorf("%w: importance %d outside [%d, %d]", ErrValidation, d.Importance, MinImportance, MaxImportance)
	}
	return nil
}

// Create validates the draft, assigns a fresh id, and persists the
// record together with its embedding in one transaction.
func (s *Store) Create(ctx context.Context, d Draft) (*Record, error) {
	if err := s.validateDraft(d); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { observability.RecordStoreWrite(time.Since(start)) }()

	rec := &Record{
		ID:         uuid.NewString(),
		Content:    d.Content,
		Embedding:  d.Embedding,
		Emotion:    d.Emotion,
		Category:   d.Category,
		Importance: d.Importance,
		Tags:       d.Tags,
		Media:      d.Media,
		CameraPose: d.CameraPose,
		CreatedAt:  time.Now(),
	}

	mediaJSON, err := encodeJSON(d.Media)
	if err != nil {
		return nil, fmt.Errorf("%w: encode media: %v", ErrStoreIO, err)
	}
	poseJSON, err := encodeJSON(d.CameraPose)
	if err != nil {
		return nil, fmt.Errorf("%w: encode camera pose: %v", ErrStoreIO, err)
	}
	vecJSON, err := json.Marshal(d.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: encode embedding: %v", ErrStoreIO, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (
			id, content, emotion, category, importance, tags,
			episode_id, media, camera_pose, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Content, string(rec.Emotion), string(rec.Category), rec.Importance,
		strings.Join(rec.Tags, ","), nil, mediaJSON, poseJSON, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: insert record: %v", ErrStoreIO, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO embeddings (record_id, embedding) VALUES (?, ?)",
		rec.ID, string(vecJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: insert embedding: %v", ErrStoreIO, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}

	s.revision.Add(1)
	s.logger.Debug().
		Str("id", rec.ID).
		Str("category", string(rec.Category)).
		Str("emotion", string(rec.Emotion)).
		Msg("Record created")

	return rec, nil
}

const recordColumns = `id, content, emotion, category, importance, tags,
	episode_id, media, camera_pose, created_at, last_accessed,
	access_count, activation_count, last_activated, novelty_score, prediction_error`

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var (
		r                        Record
		emotion, category, tags  string
		episodeID                sql.NullString
		mediaJSON, poseJSON      sql.NullString
		createdAt, lastAccessed  int64
		lastActivated            int64
	)

	err := row.Scan(
		&r.ID, &r.Content, &emotion, &category, &r.Importance, &tags,
		&episodeID, &mediaJSON, &poseJSON, &createdAt, &lastAccessed,
		&r.AccessCount, &r.ActivationCount, &lastActivated,
		&r.NoveltyScore, &r.PredictionError,
	)
	if err != nil {
		return nil, err
	}

	r.Emotion = Emotion(emotion)
	r.Category = Category(category)
	r.Tags = splitCSV(tags)
	r.EpisodeID = episodeID.String
	r.CreatedAt = fromUnixNano(createdAt)
	r.LastAccessed = fromUnixNano(lastAccessed)
	r.LastActivated = fromUnixNano(lastActivated)

	if mediaJSON.Valid && mediaJSON.String != "" {
		var m Media
		if err := json.Unmarshal([]byte(mediaJSON.String), &m); err == nil {
			r.Media = &m
		}
	}
	if poseJSON.Valid && poseJSON.String != "" {
		var p CameraPose
		if err := json.Unmarshal([]byte(poseJSON.String), &p); err == nil {
			r.CameraPose = &p
		}
	}

	return &r, nil
}

// Get fetches one record by id, including its embedding.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM records WHERE id = ?", recordColumns), id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: record %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}

	if err := s.loadEmbedding(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) loadEmbedding(ctx context.Context, rec *Record) error {
	var vecJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT vec_to_json(embedding) FROM embeddings WHERE record_id = ?", rec.ID).Scan(&vecJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	if err := json.Unmarshal([]byte(vecJSON), &rec.Embedding); err != nil {
		return fmt.Errorf("%w: decode embedding: %v", ErrStoreIO, err)
	}
	return nil
}

// GetMany fetches records for the given ids, in input order. Unknown
// ids are silently dropped; read paths treat missing nodes as absent.
func (s *Store) GetMany(ctx context.Context, ids []string) ([]*Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM records WHERE id IN (%s)", recordColumns, placeholders),
		args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	defer rows.Close()

	byID := make(map[string]*Record, len(ids))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
		}
		byID[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}

	out := make([]*Record, 0, len(byID))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// UpdateAccess increments access counts and stamps last-access time on
// the given records. This is the sole read-path feedback signal the
// consolidation engine consumes.
func (s *Store) UpdateAccess(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	args = append(args, time.Now().UnixNano())
	for _, id := range ids {
		args = append(args, id)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE records
			SET access_count = access_count + 1, last_accessed = ?
			WHERE id IN (%s)`, placeholders),
		args...)
	if err != nil {
		return fmt.Errorf("%w: update access: %v", ErrStoreIO, err)
	}
	return nil
}

// RecordActivation bumps a record's activation count and stores the
// recall engine's novelty/prediction-error telemetry, clamped to [0, 1].
func (s *Store) RecordActivation(ctx context.Context, id string, novelty, predictionError float64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE records
		 SET activation_count = activation_count + 1,
		     last_activated = ?,
		     novelty_score = ?,
		     prediction_error = ?
		 WHERE id = ?`,
		time.Now().UnixNano(), clamp01(novelty), clamp01(predictionError), id)
	if err != nil {
		return fmt.Errorf("%w: record activation: %v", ErrStoreIO, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: record %s", ErrNotFound, id)
	}
	return nil
}

// ListRecent returns records ordered by creation time descending. An
// empty category matches all categories.
func (s *Store) ListRecent(ctx context.Context, limit int, category Category) ([]*Record, error) {
	if limit <= 0 {
		limit = 10
	}

	var (
		rows *sql.Rows
		err  error
	)
	if category != "" {
		rows, err = s.db.QueryContext(ctx,
			fmt.Sprintf("SELECT %s FROM records WHERE category = ? ORDER BY created_at DESC LIMIT ?", recordColumns),
			string(category), limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			fmt.Sprintf("SELECT %s FROM records ORDER BY created_at DESC LIMIT ?", recordColumns),
			limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Delete removes a record, its embedding, its graph edges, and its
// co-activation events. Administrative operation; nothing deletes
// records automatically.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: record %s", ErrNotFound, id)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings WHERE record_id = ?", id); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM coactivation_events WHERE source_id = ? OR target_id = ?", id, id); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}

	s.revision.Add(1)
	s.logger.Debug().Str("id", id).Msg("Record deleted")
	return nil
}

// IDDistance pairs a record id with its cosine distance to a query
// vector, as reported by the vector table.
type IDDistance struct {
	RecordID string
	Distance float64
}

// VectorDistances returns the closest stored embeddings to the query
// vector, ascending by cosine distance.
func (s *Store) VectorDistances(ctx context.Context, query []float32, limit int) ([]IDDistance, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query dimension %d, want %d", ErrValidation, len(query), s.dim)
	}
	if limit <= 0 {
		limit = 100
	}

	vecJSON, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("%w: encode query: %v", ErrStoreIO, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, vec_distance_cosine(embedding, ?) AS distance
		FROM embeddings
		ORDER BY distance ASC
		LIMIT ?
	`, string(vecJSON), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: vector query: %v", ErrStoreIO, err)
	}
	defer rows.Close()

	var out []IDDistance
	for rows.Next() {
		var d IDDistance
		if err := rows.Scan(&d.RecordID, &d.Distance); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return out, nil
}

// Document is the (id, content) pair the lexical index is built from.
type Document struct {
	ID      string
	Content string
}

// AllDocuments returns every record's id and content for lexical
// indexing.
func (s *Store) AllDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, content FROM records")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Content); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return docs, nil
}

// AccessStats samples per-record usage counters, most-used first. The
// working-set cache refreshes from this; it is advisory data only.
func (s *Store) AccessStats(ctx context.Context, limit int) ([]AccessStat, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, access_count, activation_count, last_accessed, last_activated
		FROM records
		WHERE access_count > 0 OR activation_count > 0
		ORDER BY access_count + activation_count DESC, last_accessed DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	defer rows.Close()

	var stats []AccessStat
	for rows.Next() {
		var (
			st                       AccessStat
			lastAccess, lastActivate int64
		)
		if err := rows.Scan(&st.RecordID, &st.AccessCount, &st.ActivationCount, &lastAccess, &lastActivate); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
		}
		st.LastAccessed = fromUnixNano(lastAccess)
		st.LastActivated = fromUnixNano(lastActivate)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return stats, nil
}

// Stats summarizes record counts by category and emotion.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT emotion, category, created_at FROM records")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	defer rows.Close()

	st := &Stats{
		ByCategory: make(map[Category]int),
		ByEmotion:  make(map[Emotion]int),
	}
	for rows.Next() {
		var (
			emotion, category string
			createdAt         int64
		)
		if err := rows.Scan(&emotion, &category, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
		}
		st.TotalRecords++
		st.ByEmotion[Emotion(emotion)]++
		st.ByCategory[Category(category)]++

		created := fromUnixNano(createdAt)
		if st.Oldest.IsZero() || created.Before(st.Oldest) {
			st.Oldest = created
		}
		if created.After(st.Newest) {
			st.Newest = created
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM episodes").Scan(&st.TotalEpisodes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}

	observability.SetStoredRecords(st.TotalRecords)
	return st, nil
}

// ── helpers ──

func collectRecords(rows *sql.Rows) ([]*Record, error) {
	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return out, nil
}

func encodeJSON(v any) (any, error) {
	switch val := v.(type) {
	case *Media:
		if val == nil {
			return nil, nil
		}
	case *CameraPose:
		if val == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

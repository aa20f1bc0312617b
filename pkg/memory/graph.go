package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Association graph over record identifiers. Edges are symmetric and
// stored once per unordered pair under a canonical (low, high) key, so
// strength(a, b) == strength(b, a) holds after every write.

func canonicalPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// Strength returns the association strength for the unordered pair.
// Missing edges score 0; both argument orderings read the same entry.
func (s *Store) Strength(ctx context.Context, a, b string) (float64, error) {
	low, high := canonicalPair(a, b)

	var strength float64
	err := s.db.QueryRowContext(ctx,
		"SELECT strength FROM associations WHERE low_id = ? AND high_id = ?",
		low, high).Scan(&strength)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return strength, nil
}

// Neighbors returns the strongest associated records of id, descending
// by strength.
func (s *Store) Neighbors(ctx context.Context, id string, topK int) ([]Neighbor, error) {
	if topK <= 0 {
		topK = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT high_id AS neighbor, strength FROM associations WHERE low_id = ?
		UNION ALL
		SELECT low_id AS neighbor, strength FROM associations WHERE high_id = ?
		ORDER BY strength DESC
		LIMIT ?
	`, id, id, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var n Neighbor
		if err := rows.Scan(&n.ID, &n.Strength); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return out, nil
}

// Bump increases the pair's association strength by delta, clamped to
// cap. All graph mutation funnels through here, which is what keeps the
// symmetry invariant intact.
func (s *Store) Bump(ctx context.Context, a, b string, delta, cap float64) error {
	if a == b {
		return fmt.Errorf("%w: self-association for %s", ErrValidation, a)
	}
	if delta < 0 {
		return fmt.Errorf("%w: negative delta", ErrValidation)
	}

	low, high := canonicalPair(a, b)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	defer tx.Rollback()

	for _, id := range []string{low, high} {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM records WHERE id = ?", id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: record %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreIO, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO associations (low_id, high_id, strength)
		VALUES (?, ?, MIN(?, ?))
		ON CONFLICT(low_id, high_id)
		DO UPDATE SET strength = MIN(strength + ?, ?)
	`, low, high, delta, cap, delta, cap)
	if err != nil {
		return fmt.Errorf("%w: bump: %v", ErrStoreIO, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return nil
}

// AppendCoActivations logs co-retrieval events for later consolidation.
// Pairs referencing unknown records are accepted; replay skips them.
func (s *Store) AppendCoActivations(ctx context.Context, pairs [][2]string) error {
	if len(pairs) == 0 {
		return nil
	}

	now := time.Now().UnixNano()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	defer tx.Rollback()

	for _, pair := range pairs {
		eventID, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreIO, err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO coactivation_events (id, source_id, target_id, created_at) VALUES (?,?,?,?)",
			eventID, pair[0], pair[1], now)
		if err != nil {
			return fmt.Errorf("%w: append event: %v", ErrStoreIO, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return nil
}

// CoActivationsSince returns up to limit events recorded at or after
// the cutoff, oldest first.
func (s *Store) CoActivationsSince(ctx context.Context, since time.Time, limit int) ([]CoActivation, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, target_id, created_at
		FROM coactivation_events
		WHERE created_at >= ?
		ORDER BY created_at ASC
		LIMIT ?
	`, since.UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	defer rows.Close()

	var events []CoActivation
	for rows.Next() {
		var (
			ev        CoActivation
			createdAt int64
		)
		if err := rows.Scan(&ev.ID, &ev.SourceID, &ev.TargetID, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
		}
		ev.CreatedAt = fromUnixNano(createdAt)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return events, nil
}

package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ChainDirection selects which way a causal-chain traversal walks.
type ChainDirection string

const (
	// ChainForward follows outgoing links (source -> target).
	ChainForward ChainDirection = "forward"
	// ChainBackward follows incoming links (target <- source).
	ChainBackward ChainDirection = "backward"
)

const (
	minChainDepth = 1
	maxChainDepth = 5
)

// CreateLink records a directed, typed edge between two records.
// Duplicate (source, target, type) triples are ignored.
func (s *Store) CreateLink(ctx context.Context, sourceID, targetID, linkType, note string) error {
	if linkType == "" {
		return fmt.Errorf("%w: link type must not be empty", ErrValidation)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	defer tx.Rollback()

	for _, id := range []string{sourceID, targetID} {
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
		INSERT OR IGNORE INTO links (source_id, target_id, link_type, note, created_at)
		VALUES (?,?,?,?,?)
	`, sourceID, targetID, linkType, note, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("%w: insert link: %v", ErrStoreIO, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}

	s.logger.Debug().
		Str("source", sourceID).
		Str("target", targetID).
		Str("type", linkType).
		Msg("Causal link created")
	return nil
}

// Links returns the outgoing links of a record.
func (s *Store) Links(ctx context.Context, id string) ([]Link, error) {
	return s.queryLinks(ctx,
		"SELECT source_id, target_id, link_type, note, created_at FROM links WHERE source_id = ?", id)
}

// IncomingLinks returns the links pointing at a record.
func (s *Store) IncomingLinks(ctx context.Context, id string) ([]Link, error) {
	return s.queryLinks(ctx,
		"SELECT source_id, target_id, link_type, note, created_at FROM links WHERE target_id = ?", id)
}

func (s *Store) queryLinks(ctx context.Context, query, id string) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var (
			l         Link
			createdAt int64
		)
		if err := rows.Scan(&l.SourceID, &l.TargetID, &l.Type, &l.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
		}
		l.CreatedAt = fromUnixNano(createdAt)
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return links, nil
}

// CausalChain walks typed links from a starting record, breadth-first.
// The chain begins with the starting record itself. Link graphs may
// contain cycles; the visited set guarantees termination and that no
// record appears twice.
func (s *Store) CausalChain(ctx context.Context, startID string, direction ChainDirection, maxDepth int) ([]ChainEntry, error) {
	if direction != ChainForward && direction != ChainBackward {
		return nil, fmt.Errorf("%w: unknown direction %q", ErrValidation, direction)
	}
	if maxDepth < minChainDepth {
		maxDepth = minChainDepth
	}
	if maxDepth > maxChainDepth {
		maxDepth = maxChainDepth
	}

	start, err := s.Get(ctx, startID)
	if err != nil {
		return nil, err
	}

	chain := []ChainEntry{{Record: start, Depth: 0}}
	visited := map[string]bool{startID: true}
	frontier := []string{startID}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			var links []Link
			if direction == ChainForward {
				links, err = s.Links(ctx, id)
			} else {
				links, err = s.IncomingLinks(ctx, id)
			}
			if err != nil {
				return nil, err
			}

			for _, link := range links {
				otherID := link.TargetID
				if direction == ChainBackward {
					otherID = link.SourceID
				}
				if visited[otherID] {
					continue
				}
				visited[otherID] = true

				rec, err := s.Get(ctx, otherID)
				if errors.Is(err, ErrNotFound) {
					// Dangling link edge; treated as absent.
					continue
				}
				if err != nil {
					return nil, err
				}

				chain = append(chain, ChainEntry{Record: rec, LinkType: link.Type, Depth: depth})
				next = append(next, otherID)
			}
		}
		frontier = next
	}

	return chain, nil
}

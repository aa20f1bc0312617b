package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const summaryPrefixRunes = 50

// CreateEpisode groups existing records into a named episode. Members
// are ordered chronologically; the episode inherits the emotion of its
// most important member and the maximum importance. The episode row and
// every member's back-reference are written in one transaction, so a
// failure leaves neither record nor episode mutated.
func (s *Store) CreateEpisode(ctx context.Context, title string, memberIDs []string, participants []string) (*Episode, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: episode title must not be empty", ErrValidation)
	}
	if len(memberIDs) == 0 {
		return nil, fmt.Errorf("%w: episode needs at least one member", ErrValidation)
	}

	members, err := s.GetMany(ctx, memberIDs)
	if err != nil {
		return nil, err
	}
	if len(members) != len(memberIDs) {
		present := make(map[string]bool, len(members))
		for _, m := range members {
			present[m.ID] = true
		}
		for _, id := range memberIDs {
			if !present[id] {
				return nil, fmt.Errorf("%w: record %s", ErrNotFound, id)
			}
		}
	}
	for _, m := range members {
		if m.EpisodeID != "" {
			return nil, fmt.Errorf("%w: record %s already belongs to episode %s", ErrValidation, m.ID, m.EpisodeID)
		}
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].CreatedAt.Before(members[j].CreatedAt)
	})

	ep := &Episode{
		ID:           uuid.NewString(),
		Title:        title,
		Participants: participants,
		StartTime:    members[0].CreatedAt,
		Importance:   MinImportance,
	}
	if len(members) > 1 {
		ep.EndTime = members[len(members)-1].CreatedAt
	}

	var (
		summaryParts  []string
		mostImportant = members[0]
	)
	for _, m := range members {
		ep.MemberIDs = append(ep.MemberIDs, m.ID)
		summaryParts = append(summaryParts, runePrefix(m.Content, summaryPrefixRunes))
		if m.Importance > ep.Importance {
			ep.Importance = m.Importance
		}
		if m.Importance > mostImportant.Importance {
			mostImportant = m
		}
	}
	ep.Summary = strings.Join(summaryParts, " / ")
	ep.Emotion = mostImportant.Emotion

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	defer tx.Rollback()

	var endTime int64
	if !ep.EndTime.IsZero() {
		endTime = ep.EndTime.UnixNano()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO episodes (id, title, member_ids, participants, summary, emotion, importance, start_time, end_time)
		VALUES (?,?,?,?,?,?,?,?,?)
	`, ep.ID, ep.Title, strings.Join(ep.MemberIDs, ","), strings.Join(ep.Participants, ","),
		ep.Summary, string(ep.Emotion), ep.Importance, ep.StartTime.UnixNano(), endTime)
	if err != nil {
		return nil, fmt.Errorf("%w: insert episode: %v", ErrStoreIO, err)
	}

	for _, id := range ep.MemberIDs {
		if _, err := tx.ExecContext(ctx,
			"UPDATE records SET episode_id = ? WHERE id = ?", ep.ID, id); err != nil {
			return nil, fmt.Errorf("%w: set episode reference: %v", ErrStoreIO, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}

	s.logger.Debug().Str("id", ep.ID).Str("title", title).Int("members", len(ep.MemberIDs)).Msg("Episode created")
	return ep, nil
}

// Episode fetches one episode by id.
func (s *Store) Episode(ctx context.Context, id string) (*Episode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, member_ids, participants, summary, emotion, importance, start_time, end_time
		FROM episodes WHERE id = ?
	`, id)

	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: episode %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return ep, nil
}

// ListEpisodes returns all episodes, newest first.
func (s *Store) ListEpisodes(ctx context.Context) ([]*Episode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, member_ids, participants, summary, emotion, importance, start_time, end_time
		FROM episodes ORDER BY start_time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	defer rows.Close()

	var episodes []*Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
		}
		episodes = append(episodes, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return episodes, nil
}

// DeleteEpisode removes an episode and clears its members' back-
// references in one transaction. Member records are kept.
func (s *Store) DeleteEpisode(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE records SET episode_id = NULL WHERE episode_id = ?", id); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM episodes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: episode %s", ErrNotFound, id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return nil
}

func scanEpisode(row interface{ Scan(...any) error }) (*Episode, error) {
	var (
		ep                    Episode
		memberIDs             string
		participants, emotion string
		startTime, endTime    int64
	)
	err := row.Scan(&ep.ID, &ep.Title, &memberIDs, &participants, &ep.Summary,
		&emotion, &ep.Importance, &startTime, &endTime)
	if err != nil {
		return nil, err
	}

	ep.MemberIDs = splitCSV(memberIDs)
	ep.Participants = splitCSV(participants)
	ep.Emotion = Emotion(emotion)
	ep.StartTime = fromUnixNano(startTime)
	ep.EndTime = fromUnixNano(endTime)
	return &ep, nil
}

func runePrefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

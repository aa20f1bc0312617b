package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/harun/engram/internal/observability"
	"github.com/harun/engram/pkg/embedding"
	"github.com/harun/engram/pkg/memory"
)

// Ingestor converts dropped files into stored records. Plain .txt and
// .md drops become observation records of their whole content; .json
// drops carry full metadata and are schema-validated first.
type Ingestor struct {
	store    *memory.Store
	provider embedding.Provider
	logger   zerolog.Logger
}

// NewIngestor creates an ingestor over the given store and provider
func NewIngestor(store *memory.Store, provider embedding.Provider, logger zerolog.Logger) *Ingestor {
	observability.EnsureRegistered()
	return &Ingestor{
		store:    store,
		provider: provider,
		logger:   logger.With().Str("component", "ingest").Logger(),
	}
}

// ProcessFile ingests one dropped file and returns the created record
func (in *Ingestor) ProcessFile(ctx context.Context, path string) (*memory.Record, error) {
	rec, err := in.processFile(ctx, path)
	observability.RecordIngest(err == nil)
	if err != nil {
		in.logger.Error().Err(err).Str("file", filepath.Base(path)).Msg("ingest failed")
		return nil, err
	}

	in.logger.Info().
		Str("file", filepath.Base(path)).
		Str("record_id", rec.ID).
		Msg("file ingested")
	return rec, nil
}

func (in *Ingestor) processFile(ctx context.Context, path string) (*memory.Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read drop: %v", memory.ErrStoreIO, err)
	}

	var draft *memory.Draft
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		content := strings.TrimSpace(string(raw))
		if content == "" {
			return nil, fmt.Errorf("%w: empty drop file %s", memory.ErrValidation, filepath.Base(path))
		}
		draft = &memory.Draft{Content: content}
		applyDraftDefaults(draft)
	case ".json":
		draft, err = parseDrop(raw)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unsupported drop type %s", memory.ErrValidation, filepath.Ext(path))
	}

	vec, err := in.provider.GenerateEmbedding(ctx, draft.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to embed drop content: %w", err)
	}
	draft.Embedding = vec

	return in.store.Create(ctx, *draft)
}

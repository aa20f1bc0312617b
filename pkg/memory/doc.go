// Package memory is the durable record store behind the associative
// memory engine: experience records with embeddings and metadata,
// episodes, directed causal links, the symmetric association graph,
// and the co-activation event log. Everything lives in one SQLite file
// so a deployment can be backed up by copying it as a unit.
//
// Invariants:
// - Records are created with a valid emotion/category/importance and an
//   embedding of the configured dimension, or not at all.
// - Association strength is symmetric: both orderings of a pair read
//   the same stored entry, and all mutation goes through Bump.
// - Episode creation is all-or-nothing: the episode row and member
//   back-references commit together or roll back together.
//
// Usage:
//
//	store, _ := memory.New(memory.Config{Path: "/data/engram.db", Dimension: 384})
//	defer store.Close()
//	rec, _ := store.Create(ctx, memory.Draft{Content: "saw a sunset"})
//	_ = rec
package memory

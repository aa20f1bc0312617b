package rank

import (
	"math"
	"sort"

	"github.com/harun/engram/pkg/memory"
)

// Cosine computes cosine similarity between two vectors, bounded in
// [-1, 1]. Mismatched lengths and zero-magnitude vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

// BySimilarity sorts records descending by cosine similarity against
// the query vector, ties broken by higher importance, then by more
// recent creation.
func BySimilarity(query []float32, records []*memory.Record) []*memory.Record {
	type scored struct {
		rec *memory.Record
		sim float64
	}

	items := make([]scored, len(records))
	for i, rec := range records {
		items[i] = scored{rec: rec, sim: Cosine(query, rec.Embedding)}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].sim != items[j].sim {
			return items[i].sim > items[j].sim
		}
		if items[i].rec.Importance != items[j].rec.Importance {
			return items[i].rec.Importance > items[j].rec.Importance
		}
		return items[i].rec.CreatedAt.After(items[j].rec.CreatedAt)
	})

	out := make([]*memory.Record, len(items))
	for i, it := range items {
		out[i] = it.rec
	}
	return out
}

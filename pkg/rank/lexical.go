package rank

import (
	"math"

	"github.com/harun/engram/pkg/memory"
)

type posting struct {
	doc int
	tf  int
}

// Index is an in-memory BM25 inverted index over record contents. It
// is rebuilt wholesale when the underlying store changes; builds are
// cheap relative to embedding calls.
type Index struct {
	k1 float64
	b  float64

	docIDs   []string
	docLen   []int
	avgLen   float64
	postings map[string][]posting
}

// NewIndex creates an empty index with the given BM25 parameters. K1
// controls term-frequency saturation, b document-length normalization.
func NewIndex(k1, b float64) *Index {
	return &Index{
		k1:       k1,
		b:        b,
		postings: make(map[string][]posting),
	}
}

// Build replaces the index contents with the given documents.
func (ix *Index) Build(docs []memory.Document) {
	ix.docIDs = make([]string, len(docs))
	ix.docLen = make([]int, len(docs))
	ix.postings = make(map[string][]posting, len(docs)*8)

	totalLen := 0
	for i, doc := range docs {
		ix.docIDs[i] = doc.ID
		tokens := Tokenize(doc.Content)
		ix.docLen[i] = len(tokens)
		totalLen += len(tokens)

		counts := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			counts[tok]++
		}
		for tok, tf := range counts {
			ix.postings[tok] = append(ix.postings[tok], posting{doc: i, tf: tf})
		}
	}

	if len(docs) > 0 {
		ix.avgLen = float64(totalLen) / float64(len(docs))
	} else {
		ix.avgLen = 0
	}
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	return len(ix.docIDs)
}

// Scores computes BM25 scores for the query against every indexed
// document. Documents sharing no token with the query are omitted.
func (ix *Index) Scores(query string) map[string]float64 {
	scores := make(map[string]float64)
	if len(ix.docIDs) == 0 {
		return scores
	}

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return scores
	}

	n := float64(len(ix.docIDs))
	seen := make(map[string]bool, len(queryTokens))
	acc := make(map[int]float64)

	for _, tok := range queryTokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true

		plist, ok := ix.postings[tok]
		if !ok {
			continue
		}

		df := float64(len(plist))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))

		for _, p := range plist {
			tf := float64(p.tf)
			norm := 1 - ix.b + ix.b*float64(ix.docLen[p.doc])/ix.avgLen
			acc[p.doc] += idf * tf * (ix.k1 + 1) / (tf + ix.k1*norm)
		}
	}

	for doc, score := range acc {
		if score > 0 {
			scores[ix.docIDs[doc]] = score
		}
	}
	return scores
}

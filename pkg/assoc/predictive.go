package assoc

import (
	"strings"
	"unicode"

	"github.com/harun/engram/pkg/memory"
)

// tokenSet splits text into a set of lowercased word tokens.
func tokenSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.ToLower(f)] = struct{}{}
	}
	return set
}

// recordTokens extracts searchable tokens from a record's content,
// category, and tags.
func recordTokens(rec *memory.Record) map[string]struct{} {
	set := tokenSet(rec.Content)
	for tok := range tokenSet(string(rec.Category)) {
		set[tok] = struct{}{}
	}
	for _, tag := range rec.Tags {
		for tok := range tokenSet(tag) {
			set[tok] = struct{}{}
		}
	}
	return set
}

// ContextRelevance computes Jaccard token overlap between a context
// string and a record, in [0, 1].
func ContextRelevance(context string, rec *memory.Record) float64 {
	ctx := tokenSet(context)
	if len(ctx) == 0 {
		return 0
	}

	mem := recordTokens(rec)
	if len(mem) == 0 {
		return 0
	}

	overlap := 0
	for tok := range ctx {
		if _, ok := mem[tok]; ok {
			overlap++
		}
	}
	union := len(ctx) + len(mem) - overlap
	if union == 0 {
		return 0
	}
	return float64(overlap) / float64(union)
}

// PredictionError is the predictive-coding style mismatch between a
// context and a record, in [0, 1]. High error means the record was
// poorly predicted by the context.
func PredictionError(context string, rec *memory.Record) float64 {
	return 1 - ContextRelevance(context, rec)
}

// NoveltyScore blends activation history with prediction error. A
// rarely-activated, poorly-predicted record scores close to 1.
func NoveltyScore(activationCount int, predictionError float64) float64 {
	if activationCount < 0 {
		activationCount = 0
	}
	activationNovelty := 1.0 / (1.0 + float64(activationCount))

	pe := predictionError
	if pe < 0 {
		pe = 0
	}
	if pe > 1 {
		pe = 1
	}

	novelty := 0.6*activationNovelty + 0.4*pe
	if novelty > 1 {
		return 1
	}
	if novelty < 0 {
		return 0
	}
	return novelty
}

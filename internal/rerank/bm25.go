package rerank

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

// BM25 parameter defaults.
const (
	DefaultK1 = 1.2  // term frequency saturation
	DefaultB  = 0.75 // document length normalization
)

var wordRegex = regexp.MustCompile(`\b\w+\b`)

// BM25 scores candidates with the classic Okapi BM25 function. Corpus
// statistics (document frequency, average length) are computed over exactly
// the candidate set of each call, never globally — the cost is
// O(candidates x avg doc length), acceptable because reranking sees an
// already-small set.
type BM25 struct {
	k1 float64
	b  float64
}

// NewBM25 creates a BM25 reranker with the configured parameters.
func NewBM25(cfg Config) *BM25 {
	if cfg.K1 == 0 {
		cfg.K1 = DefaultK1
	}
	if cfg.B == 0 {
		cfg.B = DefaultB
	}
	return &BM25{k1: cfg.K1, b: cfg.B}
}

func (r *BM25) Rerank(ctx context.Context, query string, documents []string, threshold float64, topN int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return nil, nil
	}

	// Query-scoped corpus statistics.
	n := len(documents)
	termFreq := make([]map[string]int, n)
	docLen := make([]int, n)
	docFreq := make(map[string]int)
	totalLen := 0
	for i, doc := range documents {
		terms := tokenize(doc)
		docLen[i] = len(terms)
		totalLen += len(terms)
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		termFreq[i] = tf
		for t := range tf {
			docFreq[t]++
		}
	}
	avgLen := float64(totalLen) / float64(n)

	queryTerms := tokenize(query)
	results := make([]Result, 0, n)
	for i := range documents {
		score := 0.0
		for _, term := range queryTerms {
			df, ok := docFreq[term]
			if !ok {
				// Terms absent from the candidate corpus contribute
				// nothing.
				continue
			}
			idf := math.Log((float64(n)-float64(df)+0.5)/(float64(df)+0.5) + 1)
			tf := float64(termFreq[i][term])
			numerator := tf * (r.k1 + 1)
			denominator := tf + r.k1*(1-r.b+r.b*(float64(docLen[i])/avgLen))
			if denominator > 0 {
				score += idf * (numerator / denominator)
			}
		}
		if score >= threshold {
			results = append(results, Result{Index: i, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

// tokenize lower-cases text and extracts word tokens.
func tokenize(text string) []string {
	return wordRegex.FindAllString(strings.ToLower(text), -1)
}

var _ Reranker = (*BM25)(nil)

package content

import (
	"math"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/retail-reco/core/pkg/textx"
)

// maxIndexTokens bounds how much of a product's title+description text
// participates in TF-IDF vectorization, so one verbose listing can't blow up
// the catalog's vector dimensionality.
const maxIndexTokens = 256

func init() {
	tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
}

type vector map[string]float64

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	return enc
}

// truncateTokens bounds text to at most maxIndexTokens tiktoken tokens,
// falling back to a pass-through if the encoder is unavailable.
func truncateTokens(text string) string {
	e := encoding()
	if e == nil {
		return text
	}
	toks := e.Encode(text, nil, nil)
	if len(toks) <= maxIndexTokens {
		return text
	}
	return e.Decode(toks[:maxIndexTokens])
}

// tokenize lowercases, sanitizes, truncates, and splits text into word
// tokens for TF-IDF indexing.
func tokenize(text string) []string {
	clean := textx.SanitizeText(strings.ToLower(text))
	clean = truncateTokens(clean)
	fields := strings.FieldsFunc(clean, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

// buildTFIDF computes a TF-IDF vector per document ID over the given
// tokenized documents.
func buildTFIDF(docs map[string][]string) map[string]vector {
	df := make(map[string]int)
	for _, tokens := range docs {
		seen := make(map[string]bool, len(tokens))
		for _, t := range tokens {
			if !seen[t] {
				df[t]++
				seen[t] = true
			}
		}
	}

	n := float64(len(docs))
	out := make(map[string]vector, len(docs))
	for id, tokens := range docs {
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		v := make(vector, len(tf))
		var norm float64
		for t, count := range tf {
			idf := math.Log((n+1)/(float64(df[t])+1)) + 1
			w := float64(count) * idf
			v[t] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for t := range v {
				v[t] /= norm
			}
		}
		out[id] = v
	}
	return out
}

// cosineSimilarity computes cosine similarity between two sparse unit
// vectors produced by buildTFIDF.
func cosineSimilarity(a, b vector) float64 {
	small, large := a, b
	if len(a) > len(b) {
		small, large = b, a
	}
	var dot float64
	for t, w := range small {
		dot += w * large[t]
	}
	return dot
}

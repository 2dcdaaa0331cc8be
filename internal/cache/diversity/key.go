package diversity

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/retail-reco/core/internal/domain"
)

const cachePrefix = "diversity_cache_v2"

// hashProductList hashes a set of excluded product IDs so that the same set
// of shown products (independent of order or duplicates) always maps to the
// same cache key component. An empty set is the literal "no_exclusions"
// rather than a hash, so it reads clearly in logs and Redis SCAN output.
func hashProductList(productIDs []string) string {
	if len(productIDs) == 0 {
		return "no_exclusions"
	}
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		seen[id] = struct{}{}
	}
	sorted := make([]string, 0, len(seen))
	for id := range seen {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	sum := md5.Sum([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:])[:12]
}

type keyComponents struct {
	User     string `json:"user"`
	Intent   string `json:"intent"`
	Turn     int    `json:"turn"`
	Excluded string `json:"excluded"`
	Market   string `json:"market"`
}

// generateKey builds a composite cache key from (user, semantic intent, turn
// number, excluded-products hash, market). Distinct conversational contexts
// map to distinct keys, which is what preserves diversification: two
// requests that differ only in which products were already shown must never
// collide on the same cached response.
func generateKey(userID, query string, rc domain.RequestContext, categoryKeywords map[string][]string) string {
	market := rc.MarketID
	if market == "" {
		market = "US"
	}
	turn := rc.TurnNumber
	if turn == 0 {
		turn = 1
	}

	kc := keyComponents{
		User:     userID,
		Intent:   extractSemanticIntent(query, categoryKeywords),
		Turn:     turn,
		Excluded: hashProductList(rc.ShownProducts),
		Market:   market,
	}

	// json.Marshal on a struct with fixed field order already serializes
	// deterministically.
	raw, _ := json.Marshal(kc)
	sum := md5.Sum(raw)
	keyHash := hex.EncodeToString(sum[:])[:16]

	return cachePrefix + ":" + userID + ":" + keyHash
}

// userPattern returns the KVStore glob pattern matching every cache entry
// for a given user, used by InvalidateUser.
func userPattern(userID string) string {
	return cachePrefix + ":" + userID + ":*"
}

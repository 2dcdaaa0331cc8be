// Package diversity implements the diversity-aware personalization cache: a
// cache key strategy that preserves conversational diversification instead
// of collapsing distinct turns onto the same entry.
package diversity

import (
	"sort"
	"strings"
)

var followUpIndicators = []string{"more", "different", "other", "else", "another", "similar"}

var generalRecommendationWords = []string{"recommend", "show", "suggest"}

var helpInfoWords = []string{"help", "assist", "info"}

var searchWords = []string{"search", "find", "look"}

var defaultCategoryKeywords = map[string][]string{
	"electronics": {"phone", "laptop", "computer", "tablet", "headphone", "speaker", "electronic"},
	"sports":      {"fitness", "running", "yoga", "gym", "sport", "athletic", "exercise", "workout"},
	"fashion":     {"shirt", "pants", "dress", "jacket", "clothing", "apparel"},
	"home":        {"furniture", "decor", "kitchen", "bedroom", "living"},
	"beauty":      {"makeup", "skincare", "cosmetic", "beauty", "hair"},
}

// extractSemanticIntent classifies a free-text query into a specific intent
// label, following a strict precedence order: follow-up phrasing first (it
// carries conversational context that would otherwise be lost), then
// category keywords, general recommendation verbs, help/info tokens, search
// tokens, and finally a word-join fallback. categoryKeywords overrides the
// built-in defaults when non-nil/non-empty.
func extractSemanticIntent(query string, categoryKeywords map[string][]string) string {
	q := strings.ToLower(strings.TrimSpace(query))

	if containsAny(q, followUpIndicators) {
		switch {
		case strings.Contains(q, "category") || strings.Contains(q, "type"):
			return "follow_up_category"
		case strings.Contains(q, "price") || strings.Contains(q, "cheaper") || strings.Contains(q, "expensive"):
			return "follow_up_price"
		case strings.Contains(q, "brand"):
			return "follow_up_brand"
		default:
			return "follow_up_general"
		}
	}

	categories := categoryKeywords
	if len(categories) == 0 {
		categories = defaultCategoryKeywords
	}
	categoryNames := make([]string, 0, len(categories))
	for category := range categories {
		categoryNames = append(categoryNames, category)
	}
	sort.Strings(categoryNames)
	for _, category := range categoryNames {
		for _, kw := range categories[category] {
			if kw != "" && strings.Contains(q, kw) {
				return "initial_" + category
			}
		}
	}

	if containsAny(q, generalRecommendationWords) {
		return "initial_general_recommendation"
	}

	if containsAny(q, helpInfoWords) {
		return "information_request"
	}

	if containsAny(q, searchWords) {
		return "search_query"
	}

	words := make([]string, 0, 4)
	for _, w := range strings.Fields(q) {
		if len(w) > 3 {
			words = append(words, w)
			if len(words) == 4 {
				break
			}
		}
	}
	if len(words) == 0 {
		return "general_query"
	}
	return strings.Join(words, "_")
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// CategoriesFromCatalog derives a category -> keywords map from a product
// catalog, seeding each category with its own name plus significant words
// (len > 3) drawn from product titles. Used when no explicit category
// keyword map is configured.
func CategoriesFromCatalog(products []CatalogProduct) map[string][]string {
	sets := make(map[string]map[string]struct{})
	for _, p := range products {
		category := strings.ToLower(strings.TrimSpace(p.Category))
		if category == "" {
			continue
		}
		kws, ok := sets[category]
		if !ok {
			kws = make(map[string]struct{})
			sets[category] = kws
		}
		kws[category] = struct{}{}
		for _, w := range strings.Fields(strings.ToLower(p.Title)) {
			clean := strings.Trim(w, ".,()[]{}\"'")
			if len(clean) > 3 {
				kws[clean] = struct{}{}
			}
		}
	}

	categoryNames := make([]string, 0, len(sets))
	for category := range sets {
		categoryNames = append(categoryNames, category)
	}
	sort.Strings(categoryNames)

	out := make(map[string][]string, len(sets))
	for _, category := range categoryNames {
		kws := sets[category]
		list := make([]string, 0, len(kws))
		for kw := range kws {
			list = append(list, kw)
		}
		sort.Strings(list)
		out[category] = list
	}
	return out
}

// CatalogProduct is the minimal product shape CategoriesFromCatalog needs,
// decoupled from domain.Product so this package has no import-cycle risk
// with the catalog/engine layers.
type CatalogProduct struct {
	Title    string
	Category string
}

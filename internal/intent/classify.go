package intent

import "strings"

// rule pairs a keyword predicate with the intent it builds. Rules are tried
// in order and the first match wins; keyword sets overlap, so the order is
// part of the contract.
type rule struct {
	match func(text string) bool
	build func(text string) Intent
}

var rules = []rule{
	{
		match: containsAny("revenue", "sales", "income"),
		build: func(text string) Intent {
			return RevenueAnalysis{Timeframe: ExtractTimeframe(text), GroupBy: ExtractGroupBy(text)}
		},
	},
	{
		match: containsAny("customer", "client"),
		build: func(text string) Intent {
			return CustomerAnalysis{Limit: ExtractLimit(text), Metric: ExtractMetric(text)}
		},
	},
	{
		match: containsAny("product", "item", "merchandise"),
		build: func(text string) Intent {
			return ProductAnalysis{Metric: ExtractMetric(text), Limit: ExtractLimit(text)}
		},
	},
	{
		match: containsAny("region", "location", "country", "state"),
		build: func(text string) Intent {
			return RegionalAnalysis{Metric: ExtractMetric(text)}
		},
	},
	{
		match: func(text string) bool {
			return containsAny("comparison", "compare", "versus")(text) || hasWord(text, "vs", "vs.")
		},
		build: func(text string) Intent {
			return Comparison{Entities: ExtractComparisonEntities(text), Metric: ExtractMetric(text)}
		},
	},
}

// Classify maps free text to exactly one intent. It never fails: text that
// matches no rule becomes General.
func Classify(text string) Intent {
	normalized := Normalize(text)
	for _, r := range rules {
		if r.match(normalized) {
			return r.build(normalized)
		}
	}
	return General{Keywords: ExtractKeywords(normalized)}
}

// Normalize lower-cases text and collapses runs of whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func containsAny(keywords ...string) func(string) bool {
	return func(text string) bool {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				return true
			}
		}
		return false
	}
}

func hasWord(text string, words ...string) bool {
	for _, tok := range strings.Fields(text) {
		for _, w := range words {
			if tok == w {
				return true
			}
		}
	}
	return false
}

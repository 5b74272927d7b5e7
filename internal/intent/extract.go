package intent

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Categories and Regions are the closed vocabularies comparison entities
// are drawn from, in scan order.
var (
	Categories = []string{"Electronics", "Clothing", "Furniture", "Books", "Sports", "Toys", "Beauty"}
	Regions    = []string{"North", "South", "East", "West", "Central"}
)

// DefaultComparisonEntities is used when a comparison names no known entity.
var DefaultComparisonEntities = []string{"Electronics", "Clothing", "Furniture"}

type phrase[T any] struct {
	text  string
	value T
}

// Phrases are disjoint, so the first hit is also the most specific one.
var timeframePhrases = []phrase[Timeframe]{
	{"last 6 months", Last6Months},
	{"past 6 months", Last6Months},
	{"last six months", Last6Months},
	{"last 3 months", Last3Months},
	{"past 3 months", Last3Months},
	{"last three months", Last3Months},
	{"last quarter", LastQuarter},
	{"previous quarter", LastQuarter},
	{"this quarter", ThisQuarter},
	{"current quarter", ThisQuarter},
	{"last month", LastMonth},
	{"previous month", LastMonth},
	{"this month", ThisMonth},
	{"current month", ThisMonth},
	{"last year", LastYear},
	{"previous year", LastYear},
	{"this year", ThisYear},
	{"current year", ThisYear},
	{"year to date", ThisYear},
}

var groupByPhrases = []phrase[GroupBy]{
	{"by product", GroupByProduct},
	{"per product", GroupByProduct},
	{"by category", GroupByCategory},
	{"per category", GroupByCategory},
	{"by region", GroupByRegion},
	{"per region", GroupByRegion},
	{"by customer", GroupByCustomer},
	{"per customer", GroupByCustomer},
	{"by month", GroupByMonth},
	{"per month", GroupByMonth},
	{"monthly", GroupByMonth},
	{"by quarter", GroupByQuarter},
	{"per quarter", GroupByQuarter},
	{"quarterly", GroupByQuarter},
	{"by year", GroupByYear},
	{"per year", GroupByYear},
	{"yearly", GroupByYear},
	{"annual", GroupByYear},
}

var metricPhrases = []phrase[Metric]{
	{"revenue", Revenue},
	{"sales", Revenue},
	{"profit", Profit},
	{"margin", Profit},
	{"quantity", Quantity},
	{"volume", Quantity},
	{"units", Quantity},
	{"orders", Orders},
	{"purchases", Orders},
	{"satisfaction", Satisfaction},
	{"rating", Satisfaction},
}

var limitWords = []phrase[int]{
	{"top 5", 5},
	{"top five", 5},
	{"top 10", 10},
	{"top ten", 10},
	{"top 20", 20},
	{"top twenty", 20},
}

var (
	topNPattern = regexp.MustCompile(`top (\d+)`)
	nTopPattern = regexp.MustCompile(`(\d+) top`)
)

var stopWords = map[string]bool{
	"what": true, "which": true, "show": true, "tell": true, "give": true,
	"that": true, "this": true, "with": true, "from": true, "have": true,
	"were": true, "about": true, "there": true, "their": true, "does": true,
	"much": true, "many": true, "please": true, "could": true, "would": true,
	"should": true, "where": true, "when": true, "into": true, "over": true,
	"been": true, "them": true, "they": true, "your": true, "some": true,
}

var entityPatterns = compileVocabulary(append(append([]string{}, Categories...), Regions...))

func compileVocabulary(names []string) map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(names))
	for _, n := range names {
		out[n] = regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(n)) + `\b`)
	}
	return out
}

func firstPhrase[T any](text string, table []phrase[T], fallback T) T {
	for _, p := range table {
		if strings.Contains(text, p.text) {
			return p.value
		}
	}
	return fallback
}

// ExtractTimeframe returns the timeframe named in text, or AllTime.
func ExtractTimeframe(text string) Timeframe {
	return firstPhrase(text, timeframePhrases, AllTime)
}

// ExtractGroupBy returns the first grouping phrase found in text, or
// GroupByNone.
func ExtractGroupBy(text string) GroupBy {
	return firstPhrase(text, groupByPhrases, GroupByNone)
}

// ExtractLimit reads "top N" or "N top" from text. Values outside
// 1..MaxLimit fall back to DefaultLimit.
func ExtractLimit(text string) int {
	for _, re := range []*regexp.Regexp{topNPattern, nTopPattern} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > MaxLimit {
			return DefaultLimit
		}
		return n
	}
	return firstPhrase(text, limitWords, DefaultLimit)
}

// ExtractMetric returns the first metric named in text, or Revenue.
func ExtractMetric(text string) Metric {
	return firstPhrase(text, metricPhrases, Revenue)
}

// ExtractComparisonEntities returns the known categories and regions named
// in text, categories first, each in vocabulary order. When none are named
// it returns DefaultComparisonEntities.
func ExtractComparisonEntities(text string) []string {
	var found []string
	for _, vocab := range [][]string{Categories, Regions} {
		for _, name := range vocab {
			if entityPatterns[name].MatchString(text) {
				found = append(found, name)
			}
		}
	}
	if len(found) == 0 {
		return append([]string(nil), DefaultComparisonEntities...)
	}
	return found
}

// ExtractKeywords splits text on whitespace and keeps tokens longer than
// three characters that are not stop words.
func ExtractKeywords(text string) []string {
	keywords := []string{}
	for _, tok := range strings.Fields(text) {
		tok = strings.Trim(tok, `.,;:!?"'()`)
		if len(tok) <= 3 || stopWords[tok] {
			continue
		}
		keywords = append(keywords, tok)
	}
	return keywords
}

// IsRegion reports whether name is in the region vocabulary.
func IsRegion(name string) bool {
	for _, r := range Regions {
		if strings.EqualFold(r, name) {
			return true
		}
	}
	return false
}

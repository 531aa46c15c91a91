package sentryapi

import (
	"net/url"
	"strconv"
	"strings"
)

// SearchParams is the shared parameter set of the events search builders.
type SearchParams struct {
	Query       string
	Fields      []string
	Limit       int
	ProjectSlug string
	StatsPeriod string
	Sort        string
}

// buildDiscoverQuery produces the query string for the errors dataset
// (Discover). Field order is preserved.
func buildDiscoverQuery(p SearchParams) url.Values {
	return buildEventsQuery(p, "errors")
}

// buildEAPQuery produces the query string for the spans/ourlogs datasets
// (EAP). Sampling is only requested for spans; logs are never sampled.
func buildEAPQuery(p SearchParams, dataset string) url.Values {
	query := buildEventsQuery(p, dataset)
	if dataset == "spans" {
		query.Set("sampling", "NORMAL")
	}
	return query
}

func buildEventsQuery(p SearchParams, dataset string) url.Values {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(p.Limit))
	query.Set("query", p.Query)
	query.Set("dataset", dataset)
	if p.StatsPeriod != "" {
		query.Set("statsPeriod", p.StatsPeriod)
	}
	if p.ProjectSlug != "" {
		query.Set("project", p.ProjectSlug)
	}
	if p.Sort != "" {
		query.Set("sort", transformSort(p.Sort))
	}
	for _, field := range p.Fields {
		query.Add("field", field)
	}
	return query
}

// transformSort rewrites an aggregate sort expression into the flattened
// form the events endpoint expects:
//
//	-count()              -> -count
//	-count(span.duration) -> -count_span_duration
//	-avg(span.self_time)  -> -avg_span_self_time
//
// Plain field sorts and malformed input (unbalanced or nested parentheses)
// are returned unchanged. The transformation is idempotent on any input
// without parentheses.
func transformSort(sort string) string {
	expr := sort
	neg := strings.HasPrefix(expr, "-")
	if neg {
		expr = expr[1:]
	}

	open := strings.Index(expr, "(")
	if open < 0 || !strings.HasSuffix(expr, ")") {
		return sort
	}
	name := expr[:open]
	args := expr[open+1 : len(expr)-1]
	if name == "" || strings.ContainsAny(args, "()") {
		return sort
	}

	flattened := name
	if args != "" {
		flattened += "_" + strings.NewReplacer(".", "_", ",", "_", " ", "").Replace(args)
	}
	if neg {
		return "-" + flattened
	}
	return flattened
}

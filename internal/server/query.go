package server

import (
	"net/url"
	"sort"
	"strings"

	"github.com/koustreak/relschema/internal/errs"
	"github.com/koustreak/relschema/internal/resolver"
)

// withParam names the relation paths to load, comma separated.
const withParam = "with"

// opSuffixes maps the "field__op" query suffix onto a SQL operator.
var opSuffixes = map[string]string{
	"eq":    "=",
	"ne":    "!=",
	"lt":    "<",
	"lte":   "<=",
	"gt":    ">",
	"gte":   ">=",
	"like":  "LIKE",
	"ilike": "ILIKE",
	"in":    "IN",
	"nin":   "NOT IN",
}

// parseFilters turns query parameters into a predicate. "field=v" is an
// equality test, "field__op=v" uses op, and in/nin take comma-separated
// lists. The literal null compares against NULL for eq and ne.
// Keys are processed in sorted order.
func parseFilters(q url.Values) (resolver.Predicate, error) {
	keys := make([]string, 0, len(q))
	for k := range q {
		if k != withParam {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var pred resolver.Predicate
	for _, key := range keys {
		field, suffix := key, "eq"
		if i := strings.LastIndex(key, "__"); i > 0 {
			field, suffix = key[:i], key[i+2:]
		}
		op, ok := opSuffixes[strings.ToLower(suffix)]
		if !ok {
			return nil, errs.Errorf(errs.ErrKindInvalidInput, "unknown filter operator %q in %q", suffix, key)
		}
		for _, raw := range q[key] {
			pred = pred.And(field, op, filterValue(op, raw))
		}
	}
	return pred, nil
}

func filterValue(op, raw string) any {
	switch op {
	case "IN", "NOT IN":
		var vs []any
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				vs = append(vs, p)
			}
		}
		return vs
	case "=", "!=":
		if raw == "null" {
			return nil
		}
	}
	return raw
}

// parseInclude reads every with= parameter into one include tree.
func parseInclude(q url.Values) resolver.Include {
	var paths []string
	for _, v := range q[withParam] {
		paths = append(paths, strings.Split(v, ",")...)
	}
	if len(paths) == 0 {
		return nil
	}
	return resolver.Paths(paths...)
}

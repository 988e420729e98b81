package rules

import (
	"strconv"
	"strings"
	"time"
)

// Comparator logic names shared by attribute, page and text predicates.
const (
	LogicIs          = "is"
	LogicNot         = "not"
	LogicContains    = "contains"
	LogicNotContain  = "notContain"
	LogicStartsWith  = "startsWith"
	LogicEndsWith    = "endsWith"
	LogicEmpty       = "empty"
	LogicAny         = "any"
	LogicLessThan    = "isLessThan"
	LogicLessEqual   = "isLessThanOrEqual"
	LogicGreater     = "isGreaterThan"
	LogicGreaterEq   = "isGreaterThanOrEqual"
	LogicBetween     = "between"
	LogicRelLessThan = "lessThan"
	LogicRelMoreThan = "moreThan"
	LogicIncludesAll = "includesAll"
	LogicIncludesOne = "includesAtLeastOne"
)

// compareString applies a string comparator. Unknown logic evaluates false.
func compareString(logic, actual, expected string) bool {
	switch logic {
	case LogicIs:
		return actual == expected
	case LogicNot:
		return actual != expected
	case LogicContains:
		return strings.Contains(actual, expected)
	case LogicNotContain:
		return !strings.Contains(actual, expected)
	case LogicStartsWith:
		return strings.HasPrefix(actual, expected)
	case LogicEndsWith:
		return strings.HasSuffix(actual, expected)
	case LogicEmpty:
		return actual == ""
	case LogicAny:
		return actual != ""
	}
	return false
}

// compareNumber applies a numeric comparator. Between is inclusive on both
// bounds.
func compareNumber(logic string, actual, value, value2 float64) bool {
	switch logic {
	case LogicIs:
		return actual == value
	case LogicNot:
		return actual != value
	case LogicLessThan:
		return actual < value
	case LogicLessEqual:
		return actual <= value
	case LogicGreater:
		return actual > value
	case LogicGreaterEq:
		return actual >= value
	case LogicBetween:
		lo, hi := value, value2
		if lo > hi {
			lo, hi = hi, lo
		}
		return actual >= lo && actual <= hi
	case LogicEmpty:
		return false
	case LogicAny:
		return true
	}
	return false
}

// compareRelativeDate applies a day-offset comparator. "lessThan N days"
// means the timestamp falls within the last N days; "moreThan" means it is
// older than N days.
func compareRelativeDate(logic string, actual time.Time, days int, now time.Time) bool {
	cutoff := now.AddDate(0, 0, -days)
	switch logic {
	case LogicRelLessThan:
		return actual.After(cutoff)
	case LogicRelMoreThan:
		return actual.Before(cutoff)
	}
	return false
}

// compareList applies a list comparator against a multi-value attribute.
func compareList(logic string, actual []string, expected []string) bool {
	set := make(map[string]bool, len(actual))
	for _, v := range actual {
		set[v] = true
	}
	switch logic {
	case LogicIncludesAll:
		for _, v := range expected {
			if !set[v] {
				return false
			}
		}
		return len(expected) > 0
	case LogicIncludesOne:
		for _, v := range expected {
			if set[v] {
				return true
			}
		}
		return false
	case LogicEmpty:
		return len(actual) == 0
	case LogicAny:
		return len(actual) > 0
	}
	return false
}

// coerceString renders an attribute value for string comparison.
func coerceString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	}
	return "", false
}

// coerceNumber parses an attribute value as a number.
func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// coerceTime parses an attribute value as a timestamp. Accepts RFC3339
// strings and unix-epoch numbers (seconds or milliseconds).
func coerceTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, true
		}
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t, true
		}
	case float64:
		if v > 1e12 {
			return time.UnixMilli(int64(v)), true
		}
		return time.Unix(int64(v), 0), true
	case time.Time:
		return v, true
	}
	return time.Time{}, false
}

// coerceStringList renders an attribute value as a list of strings.
func coerceStringList(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := coerceString(item)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

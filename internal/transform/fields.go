package transform

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storelens-lab/storelens/internal/connector"
)

// dig walks a dotted path through nested maps and slices. Numeric path
// segments index into slices, so "variants.0.price" reaches the first
// variant's price.
func dig(data connector.Raw, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = map[string]any(data)
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

// asString renders the value at path as a string. JSON numbers are
// formatted without a trailing ".0" so numeric platform IDs stay usable
// as identity keys.
func asString(data connector.Raw, path string) string {
	v, ok := dig(data, path)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	}
	return ""
}

// asDecimal pulls a numeric value from the record by dotted path.
// Returns decimal.Zero if the field is missing, empty, or not a recognized
// numeric type. JSON numbers unmarshal to float64 in Go — that's the common
// path; NewFromFloat converts it to an exact decimal representation.
func asDecimal(data connector.Raw, path string) decimal.Decimal {
	v, ok := dig(data, path)
	if !ok {
		return decimal.Zero
	}
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val)
	case float32:
		return decimal.NewFromFloat(float64(val))
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case int32:
		return decimal.NewFromInt(int64(val))
	case string:
		d, err := decimal.NewFromString(val)
		if err == nil {
			return d
		}
	}
	return decimal.Zero
}

// asCentAmount reads a commercetools money object at path and converts its
// centAmount to major units.
func asCentAmount(data connector.Raw, path string) decimal.Decimal {
	return asDecimal(data, path+".centAmount").Div(decimal.NewFromInt(100))
}

func asInt(data connector.Raw, path string) int {
	v, ok := dig(data, path)
	if !ok {
		return 0
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case int64:
		return int(val)
	case string:
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return 0
}

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// asTime parses the timestamp at path, trying the formats the three
// platforms emit. Returns the zero time when absent or unparseable.
func asTime(data connector.Raw, path string) time.Time {
	raw := asString(data, path)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// asSlice returns the list of raw records at path.
func asSlice(data connector.Raw, path string) []connector.Raw {
	v, ok := dig(data, path)
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]connector.Raw, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// asLocalized resolves a commercetools localized string, preferring "en"
// then falling back to any available locale.
func asLocalized(data connector.Raw, path string) string {
	v, ok := dig(data, path)
	if !ok {
		return ""
	}
	locales, ok := v.(map[string]any)
	if !ok {
		if s, ok := v.(string); ok {
			return s
		}
		return ""
	}
	if s, ok := locales["en"].(string); ok {
		return s
	}
	for _, val := range locales {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Options is a free-form option bag decoded from JSON or YAML.
//
// JSON numbers arrive as float64 and YAML numbers as int, so every numeric
// accessor accepts both. Accessors never fail: a missing or malformed value
// yields the default.
type Options map[string]any

// Any returns the raw value or nil.
func (o Options) Any(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

// Has reports whether key is set.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

func (o Options) String(key, def string) string {
	switch v := o.Any(key).(type) {
	case string:
		return v
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

func (o Options) Bool(key string, def bool) bool {
	switch v := o.Any(key).(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

func (o Options) Int(key string, def int) int {
	switch v := o.Any(key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return i
	default:
		return def
	}
}

func (o Options) Float(key string, def float64) float64 {
	switch v := o.Any(key).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

// Rune reads a single-character option such as a delimiter. "\t" and "tab"
// both mean a tab.
func (o Options) Rune(key string, def rune) rune {
	s, ok := o.Any(key).(string)
	if !ok || s == "" {
		return def
	}
	switch strings.ToLower(s) {
	case `\t`, "tab":
		return '\t'
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return def
	}
	return r
}

// Strings reads a list. A scalar string is split on commas.
func (o Options) Strings(key string) []string {
	switch v := o.Any(key).(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(v)}
	}
}

// StringMap reads a string->string map.
func (o Options) StringMap(key string) map[string]string {
	out := map[string]string{}
	switch v := o.Any(key).(type) {
	case map[string]string:
		for k, s := range v {
			out[k] = s
		}
	case map[string]any:
		for k, s := range v {
			out[k] = fmt.Sprint(s)
		}
	case map[any]any:
		for k, s := range v {
			out[fmt.Sprint(k)] = fmt.Sprint(s)
		}
	}
	return out
}

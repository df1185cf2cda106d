package storage

import (
	"strconv"
	"strings"
)

// NormalizeKey converts a driver value to the canonical text used to compare
// dedupe keys inside one batch (e.g. "P1" or "8429529").
//
// Backends must not assume a particular underlying type for keys; nil maps
// to "" and never equals a present value at the call sites that care.
func NormalizeKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return ""
	}
}

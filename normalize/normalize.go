// Package normalize converts store documents into values that encode
// cleanly as JSON.
//
// Conversion rules, applied recursively through nested maps and slices:
//   - time.Time        -> RFC 3339 string, source offset and sub-second digits kept
//   - store.Reference  -> "collection/document[/...]" path string
//   - store.GeoPoint   -> {"latitude": f, "longitude": f}
//   - NaN, ±Inf        -> "NaN", "Infinity", "-Infinity"
//   - everything else  -> unchanged
package normalize

import (
	"math"
	"time"

	"github.com/stevemurr/docstore-api/store"
)

// IDField is the reserved field that carries the document identifier.
const IDField = "id"

// Document normalizes a snapshot and sets its identifier under IDField,
// replacing any stored field of that name.
func Document(snap store.Snapshot) map[string]any {
	out := make(map[string]any, len(snap.Data)+1)
	for k, v := range snap.Data {
		out[k] = Value(v)
	}
	out[IDField] = snap.ID
	return out
}

// Page normalizes every snapshot of a page. The result is never nil.
func Page(snaps []store.Snapshot) []map[string]any {
	out := make([]map[string]any, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, Document(s))
	}
	return out
}

// Value normalizes a single field value. Unknown types pass through.
func Value(v any) any {
	switch val := v.(type) {
	case time.Time:
		return Timestamp(val)
	case *time.Time:
		if val == nil {
			return nil
		}
		return Timestamp(*val)
	case store.Reference:
		return val.Path
	case *store.Reference:
		if val == nil {
			return nil
		}
		return val.Path
	case store.GeoPoint:
		return map[string]any{"latitude": float(val.Latitude), "longitude": float(val.Longitude)}
	case float64:
		return float(val)
	case float32:
		return float(float64(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Value(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Value(item)
		}
		return out
	}
	return v
}

// float spells out the values JSON has no literal for.
func float(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}

// Timestamp renders t as RFC 3339 with as many fractional digits as needed.
func Timestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

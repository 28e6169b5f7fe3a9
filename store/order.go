package store

import (
	"bytes"
	"math"
	"sort"
	"strings"
	"time"
)

// Type ranks used when values of different kinds are compared, matching
// Firestore's cross-type ordering.
const (
	rankNull = iota
	rankBool
	rankNumber
	rankTimestamp
	rankString
	rankBytes
	rankReference
	rankGeoPoint
	rankArray
	rankMap
	rankUnknown
)

// lookup resolves a dotted field path inside a document.
func lookup(doc Document, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return rankNull
	case bool:
		return rankBool
	case int, int32, int64, float32, float64:
		return rankNumber
	case time.Time:
		return rankTimestamp
	case string:
		return rankString
	case []byte:
		return rankBytes
	case Reference:
		return rankReference
	case GeoPoint:
		return rankGeoPoint
	case []any:
		return rankArray
	case map[string]any:
		return rankMap
	}
	return rankUnknown
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

// compareValues orders two document values. It returns -1, 0 or 1.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch ra {
	case rankBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		}
		return 1
	case rankNumber:
		af, bf := toFloat(a), toFloat(b)
		// NaN sorts before every other number.
		switch an, bn := math.IsNaN(af), math.IsNaN(bf); {
		case an && bn:
			return 0
		case an:
			return -1
		case bn:
			return 1
		}
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case rankTimestamp:
		return a.(time.Time).Compare(b.(time.Time))
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankBytes:
		return bytes.Compare(a.([]byte), b.([]byte))
	case rankReference:
		return strings.Compare(a.(Reference).Path, b.(Reference).Path)
	case rankGeoPoint:
		ag, bg := a.(GeoPoint), b.(GeoPoint)
		if c := compareValues(ag.Latitude, bg.Latitude); c != 0 {
			return c
		}
		return compareValues(ag.Longitude, bg.Longitude)
	case rankArray:
		aa, ba := a.([]any), b.([]any)
		for i := 0; i < len(aa) && i < len(ba); i++ {
			if c := compareValues(aa[i], ba[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(aa), len(ba))
	case rankMap:
		return compareMaps(a.(map[string]any), b.(map[string]any))
	}
	return 0
}

func compareMaps(a, b map[string]any) int {
	ak, bk := sortedKeys(a), sortedKeys(b)
	for i := 0; i < len(ak) && i < len(bk); i++ {
		if c := strings.Compare(ak[i], bk[i]); c != 0 {
			return c
		}
		if c := compareValues(a[ak[i]], b[bk[i]]); c != 0 {
			return c
		}
	}
	return cmpInt(len(ak), len(bk))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// paginate applies ordering and the offset/limit window to snapshots that
// are already in store-native order. Documents missing the order field are
// dropped, as Firestore does.
func paginate(snaps []Snapshot, q Query) []Snapshot {
	if q.OrderBy != "" {
		kept := make([]Snapshot, 0, len(snaps))
		for _, s := range snaps {
			if _, ok := lookup(s.Data, q.OrderBy); ok {
				kept = append(kept, s)
			}
		}
		sort.SliceStable(kept, func(i, j int) bool {
			vi, _ := lookup(kept[i].Data, q.OrderBy)
			vj, _ := lookup(kept[j].Data, q.OrderBy)
			c := compareValues(vi, vj)
			if q.descending() {
				return c > 0
			}
			return c < 0
		})
		snaps = kept
	}

	if q.Offset >= len(snaps) {
		return []Snapshot{}
	}
	end := q.Offset + q.Limit
	if end > len(snaps) {
		end = len(snaps)
	}
	return snaps[q.Offset:end]
}

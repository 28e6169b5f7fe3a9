package store

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompareValuesTypeRank(t *testing.T) {
	ordered := []any{
		nil,
		false,
		true,
		int64(-3),
		2.5,
		int64(10),
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		"a",
		"b",
		[]byte("a"),
		Reference{Path: "users/a"},
		GeoPoint{Latitude: 1, Longitude: 2},
		[]any{int64(1)},
		[]any{int64(1), int64(2)},
		map[string]any{"a": int64(1)},
	}
	for i := 0; i < len(ordered)-1; i++ {
		assert.Equal(t, -1, compareValues(ordered[i], ordered[i+1]), "%v < %v", ordered[i], ordered[i+1])
		assert.Equal(t, 1, compareValues(ordered[i+1], ordered[i]), "%v > %v", ordered[i+1], ordered[i])
	}
	assert.Equal(t, 0, compareValues(int64(2), 2.0))
}

func TestCompareValuesNaN(t *testing.T) {
	nan := math.NaN()
	assert.Equal(t, 0, compareValues(nan, nan))
	assert.Equal(t, -1, compareValues(nan, math.Inf(-1)))
	assert.Equal(t, -1, compareValues(nan, int64(-5)))
	assert.Equal(t, 1, compareValues(int64(0), nan))
	assert.Equal(t, -1, compareValues(true, nan), "bool still ranks below numbers")

	snaps := []Snapshot{
		{ID: "1", Data: Document{"n": int64(3)}},
		{ID: "2", Data: Document{"n": nan}},
		{ID: "3", Data: Document{"n": -1.5}},
		{ID: "4", Data: Document{"n": nan}},
	}
	var got []string
	for _, s := range paginate(snaps, Query{Limit: 10, OrderBy: "n", Direction: Asc}) {
		got = append(got, s.ID)
	}
	assert.Equal(t, []string{"2", "4", "3", "1"}, got)
}

func TestLookup(t *testing.T) {
	doc := Document{"a": map[string]any{"b": map[string]any{"c": "deep"}}, "x": "flat"}

	v, ok := lookup(doc, "a.b.c")
	assert.True(t, ok)
	assert.Equal(t, "deep", v)

	_, ok = lookup(doc, "x.y")
	assert.False(t, ok)
	_, ok = lookup(doc, "missing")
	assert.False(t, ok)
}

func TestPaginate(t *testing.T) {
	snaps := []Snapshot{
		{ID: "1", Data: Document{"n": int64(3)}},
		{ID: "2", Data: Document{"n": int64(1)}},
		{ID: "3", Data: Document{}},
		{ID: "4", Data: Document{"n": int64(2)}},
	}
	page := func(q Query) []string {
		var out []string
		for _, s := range paginate(append([]Snapshot(nil), snaps...), q) {
			out = append(out, s.ID)
		}
		return out
	}

	assert.Equal(t, []string{"1", "2"}, page(Query{Limit: 2, Direction: Asc}))
	assert.Equal(t, []string{"3", "4"}, page(Query{Limit: 5, Offset: 2, Direction: Asc}))
	assert.Equal(t, []string{"2", "4", "1"}, page(Query{Limit: 10, OrderBy: "n", Direction: Asc}))
	assert.Equal(t, []string{"1", "4", "2"}, page(Query{Limit: 10, OrderBy: "n", Direction: Desc}))
	assert.Equal(t, []string{"4"}, page(Query{Limit: 1, Offset: 1, OrderBy: "n", Direction: Asc}))
	assert.Empty(t, page(Query{Limit: 10, Offset: 4, Direction: Asc}))
}

func TestQueryValidate(t *testing.T) {
	assert.NoError(t, DefaultQuery().Validate())
	assert.NoError(t, Query{Limit: MaxLimit, Offset: 1 << 20, Direction: Desc}.Validate())

	for _, dir := range []Direction{"", "ASC", "up", "Desc", "asc "} {
		err := Query{Limit: 1, Direction: dir}.Validate()
		var verr *ValidationError
		if assert.ErrorAs(t, err, &verr, "direction %q", dir) {
			assert.Equal(t, "order_dir", verr.Field)
		}
	}
}

func TestReferenceSegments(t *testing.T) {
	assert.Equal(t, []string{"users", "a", "playlists", "p"}, Reference{Path: "users/a/playlists/p"}.Segments())
}

func TestCodecRoundTrip(t *testing.T) {
	doc := Document{
		"at":    time.Date(2022, 2, 2, 2, 2, 2, 2, time.UTC),
		"ref":   Reference{Path: "a/b"},
		"geo":   GeoPoint{Latitude: 1.5, Longitude: -2.5},
		"raw":   []byte{0, 1, 2},
		"list":  []any{int64(1), "two", Reference{Path: "c/d"}},
		"inner": map[string]any{"when": time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)},
		"big":   int64(1) << 60,
	}
	b, err := encodeDocument(doc)
	assert.NoError(t, err)
	got, err := decodeDocument(b)
	assert.NoError(t, err)
	assert.Equal(t, doc, got)
}

package store

import (
	"bytes"
	"encoding/base64"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Tags of the extended JSON encoding used by the file and SQL backends to
// persist store-native values.
const (
	tagTimestamp = "$timestamp"
	tagReference = "$ref"
	tagGeoPoint  = "$geo"
	tagBytes     = "$bytes"
)

// decodeDocument parses one extended-JSON document.
func decodeDocument(raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	if m == nil {
		return nil, errors.New("decode document: not an object")
	}
	doc := make(Document, len(m))
	for k, v := range m {
		doc[k] = decodeValue(v)
	}
	return doc, nil
}

// decodeCollection parses an extended-JSON object of id -> document.
// Entries that are not objects are skipped.
func decodeCollection(raw []byte) (map[string]Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Wrap(err, "decode collection")
	}
	result := make(map[string]Document, len(m))
	for id, v := range m {
		if doc, ok := decodeValue(v).(map[string]any); ok {
			result[id] = doc
		}
	}
	return result, nil
}

func decodeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = decodeValue(item)
		}
		return out
	case map[string]any:
		if len(val) == 1 {
			if tagged, ok := decodeTagged(val); ok {
				return tagged
			}
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = decodeValue(item)
		}
		return out
	}
	return v
}

func decodeTagged(m map[string]any) (any, bool) {
	if s, ok := m[tagTimestamp].(string); ok {
		t, err := time.Parse(time.RFC3339Nano, s)
		return t, err == nil
	}
	if s, ok := m[tagReference].(string); ok {
		return Reference{Path: strings.Trim(s, "/")}, true
	}
	if g, ok := m[tagGeoPoint].(map[string]any); ok {
		lat, latOK := number(decodeValue(g["latitude"]))
		lng, lngOK := number(decodeValue(g["longitude"]))
		return GeoPoint{Latitude: lat, Longitude: lng}, latOK && lngOK
	}
	if s, ok := m[tagBytes].(string); ok {
		b, err := base64.StdEncoding.DecodeString(s)
		return b, err == nil
	}
	return nil, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// encodeDocument renders a document as extended JSON.
func encodeDocument(doc Document) ([]byte, error) {
	b, err := json.Marshal(encodeValue(doc))
	return b, errors.Wrap(err, "encode document")
}

func encodeValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return map[string]any{tagTimestamp: val.Format(time.RFC3339Nano)}
	case Reference:
		return map[string]any{tagReference: val.Path}
	case GeoPoint:
		return map[string]any{tagGeoPoint: map[string]any{"latitude": val.Latitude, "longitude": val.Longitude}}
	case []byte:
		return map[string]any{tagBytes: base64.StdEncoding.EncodeToString(val)}
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = encodeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = encodeValue(item)
		}
		return out
	}
	return v
}

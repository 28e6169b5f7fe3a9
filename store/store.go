// Package store defines the read-only document store interface and its backends.
package store

import (
	"context"
	"fmt"
	"strings"
)

const (
	// DefaultLimit is the page size used when the caller does not ask for one.
	DefaultLimit = 100
	// MaxLimit is the inclusive upper bound on the page size.
	MaxLimit = 1000
)

// Store is the interface that all backing stores must implement.
// It operates on named collections, where each collection contains
// documents keyed by a string identifier. Collections are never
// enumerated: an unknown collection is simply empty.
type Store interface {
	// FetchPage returns at most q.Limit documents of a collection, skipping
	// the first q.Offset. When q.OrderBy is set the documents are sorted by
	// that field before the page is cut. Pagination is offset based, so
	// concurrent writes may shift documents between pages.
	FetchPage(ctx context.Context, collection string, q Query) ([]Snapshot, error)

	// FetchOne returns a single document, or ErrNotFound.
	FetchOne(ctx context.Context, collection, id string) (Snapshot, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying handle.
	Close() error
}

// Document is a schemaless set of fields as stored.
type Document = map[string]any

// Snapshot is a document together with its identifier.
type Snapshot struct {
	ID   string
	Data Document
}

// Reference points at another document by path.
type Reference struct {
	// Path holds the collection/document segments joined by "/".
	Path string
}

// Segments splits the reference path.
func (r Reference) Segments() []string {
	return strings.Split(strings.Trim(r.Path, "/"), "/")
}

func (r Reference) String() string { return r.Path }

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// Direction is the sort direction of an ordered query.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts exactly "asc" or "desc".
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Asc, Desc:
		return Direction(s), nil
	}
	return "", &ValidationError{Field: "order_dir", Value: s, Reason: "must be one of asc, desc"}
}

// Query holds the pagination and ordering parameters of FetchPage.
type Query struct {
	Limit     int
	Offset    int
	OrderBy   string
	Direction Direction
}

// DefaultQuery returns the first page with store-native ordering.
func DefaultQuery() Query {
	return Query{Limit: DefaultLimit, Direction: Asc}
}

// Validate checks the bounds of q.
func (q Query) Validate() error {
	if q.Limit < 1 || q.Limit > MaxLimit {
		return &ValidationError{Field: "limit", Value: fmt.Sprint(q.Limit), Reason: fmt.Sprintf("must be between 1 and %d", MaxLimit)}
	}
	if q.Offset < 0 {
		return &ValidationError{Field: "offset", Value: fmt.Sprint(q.Offset), Reason: "must be non-negative"}
	}
	if _, err := ParseDirection(string(q.Direction)); err != nil {
		return err
	}
	return nil
}

// descending reports whether the query sorts in descending order.
func (q Query) descending() bool {
	return q.OrderBy != "" && q.Direction == Desc
}

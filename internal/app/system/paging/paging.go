// internal/app/system/paging/paging.go
package paging

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/parley/internal/app/system/normalize"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultLimit is the page size used when the client does not send one.
const DefaultLimit = 50

// MaxLimit caps client-supplied page sizes.
const MaxLimit = 200

// ErrBadCursor is returned when a cursor is present but is not an ObjectID.
var ErrBadCursor = errors.New("cursor must be a 24 character hex identifier")

// ParseLimit reads the "limit" query parameter.
// Missing or invalid values fall back to DefaultLimit; large values are capped.
func ParseLimit(r *http.Request) int64 {
	n, err := strconv.ParseInt(query.Get(r, "limit"), 10, 64)
	if err != nil || n < 1 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// ParseSkip reads the numeric "skip" offset. Returns 0 if absent or invalid.
func ParseSkip(r *http.Request) int64 {
	n, err := strconv.ParseInt(query.Get(r, "skip"), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Direction indicates which side of the cursor to read.
type Direction int

const (
	Previous Direction = iota // Default: older than the cursor, "_id" $lt
	Recent                    // Newer than the cursor, "_id" $gt
)

// String returns the wire name of the direction.
func (d Direction) String() string {
	if d == Recent {
		return "recent"
	}
	return "previous"
}

// ParseDirection maps the "sort" query value to a Direction.
// Anything other than "recent" reads older messages.
func ParseDirection(s string) Direction {
	if strings.EqualFold(normalize.QueryParam(s), "recent") {
		return Recent
	}
	return Previous
}

// KeysetConfig holds everything needed to build one cursor window query.
type KeysetConfig struct {
	Direction Direction
	Cursor    *primitive.ObjectID
	Limit     int64
}

// ConfigureKeyset decodes the cursor and direction for a window query.
// An empty cursor means "start from the newest record".
func ConfigureKeyset(sort, cursor string, limit int64) (KeysetConfig, error) {
	cfg := KeysetConfig{
		Direction: ParseDirection(sort),
		Limit:     limit,
	}
	if cfg.Limit < 1 {
		cfg.Limit = DefaultLimit
	}

	cursor = normalize.QueryParam(cursor)
	if cursor == "" {
		return cfg, nil
	}
	oid, err := primitive.ObjectIDFromHex(cursor)
	if err != nil {
		return cfg, ErrBadCursor
	}
	cfg.Cursor = &oid
	return cfg, nil
}

// FromRequest is ConfigureKeyset fed from the "sort", "sortId" and "limit"
// query parameters.
func FromRequest(r *http.Request) (KeysetConfig, error) {
	return ConfigureKeyset(query.Get(r, "sort"), query.Get(r, "sortId"), ParseLimit(r))
}

// KeysetWindow returns the "_id" condition for the query filter, or nil when
// no cursor is set.
func (cfg KeysetConfig) KeysetWindow() bson.M {
	if cfg.Cursor == nil {
		return nil
	}
	op := "$lt"
	if cfg.Direction == Recent {
		op = "$gt"
	}
	return bson.M{"_id": bson.M{op: *cfg.Cursor}}
}

// ApplyToFind sorts newest-first and limits the window. Both directions read
// descending; callers Reverse the rows so clients always get oldest-first.
func (cfg KeysetConfig) ApplyToFind(find *options.FindOptions) {
	find.SetSort(bson.D{{Key: "_id", Value: -1}}).SetLimit(cfg.Limit)
}

// Reverse reverses a slice in place.
func Reverse[T any](rows []T) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// Package kv is the partitioned key-value boundary the memory store persists to.
//
// Items live in a partition (PK) ordered by a sort key (SK). Three secondary
// partitions (scope, type, id) give the alternate access paths; every index is
// ordered by SK, so recency ordering holds on every path.
package kv

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

// Index selects the partition an item is queried by.
type Index int

const (
	IndexPrimary Index = iota
	IndexScope
	IndexType
	IndexID
)

func (i Index) String() string {
	switch i {
	case IndexPrimary:
		return "primary"
	case IndexScope:
		return "scope"
	case IndexType:
		return "type"
	case IndexID:
		return "id"
	}
	return "unknown"
}

const (
	DefaultQueryLimit = 20
	MaxQueryLimit     = 1000
)

// Key addresses one item.
type Key struct {
	PK string
	SK string
}

// Item is one stored record. ExpiresAt is epoch seconds, 0 for none.
type Item struct {
	PK        string
	SK        string
	ScopeKey  string
	TypeKey   string
	IDKey     string
	Data      []byte
	ExpiresAt int64
}

// Key returns the primary key of the item.
func (it *Item) Key() Key {
	return Key{PK: it.PK, SK: it.SK}
}

// Partition returns the partition value of it on index i.
func (it *Item) Partition(i Index) string {
	switch i {
	case IndexScope:
		return it.ScopeKey
	case IndexType:
		return it.TypeKey
	case IndexID:
		return it.IDKey
	}
	return it.PK
}

// QueryInput selects a page of one partition.
type QueryInput struct {
	Index       Index
	Partition   string
	SKPrefix    string
	Limit       int
	ScanForward bool
	Cursor      string
}

// QueryOutput is one page. NextCursor is empty on the last page.
type QueryOutput struct {
	Items      []Item
	NextCursor string
}

// Store is implemented by every backend.
type Store interface {
	// ConditionalPut writes item, failing with model.ErrConflict when its key exists.
	ConditionalPut(ctx context.Context, item Item) error

	// Get returns the item or model.ErrNotFound.
	Get(ctx context.Context, key Key) (*Item, error)

	// Query returns one page of a partition ordered by SK.
	Query(ctx context.Context, in QueryInput) (*QueryOutput, error)

	// Update runs fn on the current item and writes the result atomically for
	// that item. Keys cannot be changed by fn.
	Update(ctx context.Context, key Key, fn func(*Item) error) (*Item, error)

	// Delete removes the item. Deleting an absent item succeeds.
	Delete(ctx context.Context, key Key) error

	// ScanExpired returns up to limit items whose ExpiresAt is set and <= now.
	ScanExpired(ctx context.Context, now time.Time, limit int) ([]Item, error)

	// Close releases the backend.
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}

// EncodeCursor turns the last sort key of a page into an opaque cursor.
func EncodeCursor(sk string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(sk))
}

// DecodeCursor reverses EncodeCursor.
func DecodeCursor(cursor string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil || len(b) == 0 {
		return "", goerr.Wrap(model.ErrValidation, "malformed cursor", goerr.V("cursor", cursor))
	}
	return string(b), nil
}

// pin restores the key fields of next from prev so an update callback cannot
// move an item.
func pin(next *Item, prev Item) {
	next.PK = prev.PK
	next.SK = prev.SK
	next.ScopeKey = prev.ScopeKey
	next.TypeKey = prev.TypeKey
	next.IDKey = prev.IDKey
}

// prefixEnd is the exclusive upper bound of every string starting with prefix.
func prefixEnd(prefix string) string {
	return prefix + "\uffff"
}

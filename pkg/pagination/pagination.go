// Package pagination implements keyset paging over (created_at, id) with
// opaque cursors that remember their traversal order.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Order is the traversal direction of a keyset listing.
type Order string

const (
	NewestFirst Order = "desc"
	OldestFirst Order = "asc"
)

// ParseOrder maps a query value onto an Order; blank means newest-first.
func ParseOrder(value string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(NewestFirst), "newest":
		return NewestFirst, nil
	case string(OldestFirst), "oldest":
		return OldestFirst, nil
	}
	return "", fmt.Errorf("invalid order %q", value)
}

func (o Order) sql() (direction, comparison string) {
	if o == OldestFirst {
		return "ASC", ">"
	}
	return "DESC", "<"
}

// Cursor is the position after the last row a caller has seen. It is bound to
// the traversal order so a cursor cannot be replayed in the other direction.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        uuid.UUID `json:"id"`
	Order     Order     `json:"o"`
}

// NormalizeLimit clamps limit to (0, MaxLimit], with DefaultLimit for unset.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer asks for one extra row so the caller can tell whether a
// next page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor builds an opaque URL-safe cursor string.
func EncodeCursor(cursor Cursor) string {
	if cursor.Order == "" {
		cursor.Order = NewestFirst
	}
	cursor.CreatedAt = cursor.CreatedAt.UTC()
	raw, _ := json.Marshal(cursor)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor decodes a cursor string. A blank value yields a nil cursor,
// meaning start from the beginning.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var cursor Cursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor format: %w", err)
	}
	if cursor.ID == uuid.Nil || cursor.CreatedAt.IsZero() {
		return nil, fmt.Errorf("invalid cursor: missing position")
	}
	if cursor.Order, err = ParseOrder(string(cursor.Order)); err != nil {
		return nil, fmt.Errorf("invalid cursor order: %w", err)
	}
	return &cursor, nil
}

// Keyset is a gorm scope that orders by (created_at, id) in order and, with
// after set, starts strictly past that row.
func Keyset(order Order, after *Cursor) func(*gorm.DB) *gorm.DB {
	direction, comparison := order.sql()
	return func(db *gorm.DB) *gorm.DB {
		if after != nil {
			at := after.CreatedAt.UTC()
			db = db.Where(
				fmt.Sprintf("(created_at %[1]s ? OR (created_at = ? AND id %[1]s ?))", comparison),
				at, at, after.ID,
			)
		}
		return db.Order("created_at " + direction).Order("id " + direction)
	}
}

// Trim cuts rows fetched with LimitWithBuffer back to size and returns the
// cursor of the next page, empty when rows was the last page.
func Trim[T any](rows []T, size int, order Order, position func(T) (time.Time, uuid.UUID)) ([]T, string) {
	if len(rows) <= size {
		return rows, ""
	}
	rows = rows[:size]
	at, id := position(rows[size-1])
	return rows, EncodeCursor(Cursor{CreatedAt: at, ID: id, Order: order})
}

// Package pagination implements keyset pagination with opaque cursors.
// Listings order by (created_at DESC, id DESC); the cursor carries the
// last row's position so the next page resumes after it without
// OFFSET scans.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/Loxess-crl/carrito-compras/pkg/errors"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// cursorSep joins the timestamp and id inside the encoded cursor.
const cursorSep = "|"

// Params carries the page size and the opaque cursor from the request.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the decoded keyset position.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit clamps a requested page size into [1, MaxLimit],
// substituting DefaultLimit when the value is unset or non-positive.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the normalized limit plus one. Repositories
// fetch the extra row to detect whether a next page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor serializes a keyset position into an opaque token.
func EncodeCursor(cursor Cursor) string {
	raw := cursor.CreatedAt.Format(time.RFC3339Nano) + cursorSep + cursor.ID.String()
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor decodes a cursor token. An empty token means the first
// page and returns (nil, nil).
func ParseCursor(value string) (*Cursor, error) {
	if value == "" {
		return nil, nil
	}

	raw, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return nil, invalidCursor(err)
	}

	parts := strings.SplitN(string(raw), cursorSep, 2)
	if len(parts) != 2 {
		return nil, invalidCursor(fmt.Errorf("expected 2 cursor fields, got %d", len(parts)))
	}

	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, invalidCursor(err)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, invalidCursor(err)
	}

	return &Cursor{CreatedAt: createdAt, ID: id}, nil
}

func invalidCursor(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
}

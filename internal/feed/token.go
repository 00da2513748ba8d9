package feed

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Cursor is the position after which a keyset-paged feed continues:
// rows ordered by (updatedAt, key) strictly after it.
type Cursor struct {
	UpdatedAt time.Time `json:"u"`
	Key       string    `json:"k"`
}

// IsZero reports whether c carries no position.
func (c Cursor) IsZero() bool {
	return c.UpdatedAt.IsZero() && c.Key == ""
}

// EncodeCursor renders c as an opaque URL-safe token.
func EncodeCursor(c Cursor) string {
	b, _ := json.Marshal(Cursor{UpdatedAt: c.UpdatedAt.UTC(), Key: c.Key})
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a token produced by EncodeCursor. The empty token
// yields the zero Cursor.
func DecodeCursor(token string) (Cursor, error) {
	var c Cursor
	if token == "" {
		return c, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Key == "" {
		return c, fmt.Errorf("%w: missing key", ErrInvalidToken)
	}
	return c, nil
}

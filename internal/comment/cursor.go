package comment

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidCursor is returned when a page cursor cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor marks a position in a listing by the sort key of the last comment seen.
type Cursor struct {
	Timestamp int64 `json:"t"` // unix milliseconds
	ID        int64 `json:"id"`
}

// CursorAfter returns the encoded cursor positioned after c.
func CursorAfter(c *Comment) string {
	return EncodeCursor(Cursor{Timestamp: c.Timestamp.UnixMilli(), ID: c.ID})
}

// EncodeCursor returns the web-safe token for cur.
func EncodeCursor(cur Cursor) string {
	data, err := json.Marshal(cur)
	if err != nil {
		// Two int64 fields always marshal.
		panic(fmt.Sprintf("encoding cursor: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(token string) (Cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var cur Cursor
	if err := json.Unmarshal(data, &cur); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if cur.ID <= 0 {
		return Cursor{}, fmt.Errorf("%w: missing id", ErrInvalidCursor)
	}
	return cur, nil
}

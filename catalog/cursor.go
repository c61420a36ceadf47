package catalog

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

type cursorPayload struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// EncodeCursor builds an opaque cursor from the last item of a page
func EncodeCursor(id string, createdAt time.Time) string {
	data, _ := json.Marshal(cursorPayload{ID: id, CreatedAt: createdAt})
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCursor parses a cursor back into its position. Callers treat an
// error as "no cursor" and scan from the beginning.
func DecodeCursor(cursor string) (id string, createdAt time.Time, err error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", time.Time{}, fmt.Errorf("invalid cursor payload: %w", err)
	}
	if payload.ID == "" || payload.CreatedAt.IsZero() {
		return "", time.Time{}, fmt.Errorf("incomplete cursor payload")
	}

	return payload.ID, payload.CreatedAt, nil
}

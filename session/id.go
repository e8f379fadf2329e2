package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidID is returned for session IDs that cannot name a session file.
var ErrInvalidID = errors.New("invalid session id")

// NewID returns a fresh session identifier: session_<yyyymmdd_hhmmss>_<8 hex>.
func NewID() string {
	return fmt.Sprintf("session_%s_%s", time.Now().Format("20060102_150405"), shortHex(8))
}

// ValidateID rejects empty IDs and IDs that would escape the session directory.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidID)
	case id == "." || id == "..", strings.ContainsAny(id, `/\`), strings.ContainsRune(id, 0):
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func shortHex(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

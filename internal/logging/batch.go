package logging

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewBatchID returns a random identifier for correlating the log lines
// of one resolution batch.
func NewBatchID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

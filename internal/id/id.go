package id

import (
	"strings"

	"github.com/google/uuid"
)

const transactionPrefix = "btx_"

// NewTransactionID returns a process-unique, never reused bridge transaction id.
func NewTransactionID() string {
	return transactionPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsTransactionID reports whether v has the shape produced by NewTransactionID.
func IsTransactionID(v string) bool {
	rest, ok := strings.CutPrefix(strings.TrimSpace(v), transactionPrefix)
	if !ok || len(rest) != 32 {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}

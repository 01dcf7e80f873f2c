package helpers

import (
	"testing"

	"github.com/xiaot623/gogo/container/internal/session"
)

func NewTestSQLiteStore(t *testing.T) *session.SQLiteStore {
	t.Helper()

	s, err := session.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

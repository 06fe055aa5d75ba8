package bounty

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPGStore(t *testing.T) {
	dsn := os.Getenv("BOUNTY_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("BOUNTY_TEST_PG_DSN not set")
	}
	runStoreSuite(t, func(t *testing.T) Store {
		ctx := context.Background()
		s, err := NewPGStore(ctx, dsn)
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, `TRUNCATE bounty_registry, bounty_records, bounty_accounts, bounty_events RESTART IDENTITY`)
		require.NoError(t, err)
		return s
	})
}

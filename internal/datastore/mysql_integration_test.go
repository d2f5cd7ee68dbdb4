//go:build integration

package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/tphakala/pokerwatch/internal/conf"
)

// TestMySQLStore_Integration runs the upsert and distinct-date queries
// against a real MySQL server.
func TestMySQLStore_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("pokerwatch"),
		tcmysql.WithUsername("poker"),
		tcmysql.WithPassword("poker"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Output.MySQL = conf.MySQLSettings{
		Enabled:  true,
		Username: "poker",
		Password: "poker",
		Host:     host,
		Port:     port.Port(),
		Database: "pokerwatch",
	}

	store := &MySQLStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Ping(ctx))

	require.NoError(t, store.UpsertSites([]Site{{Name: "GGNetwork", Category: "OWN", Priority: 1}}))
	require.NoError(t, store.UpsertSnapshots([]Snapshot{
		snap("GGNetwork", "2024-03-01", "09:00:00", 100000),
		snap("GGNetwork", "2024-03-02", "09:00:00", 110000),
		snap("GGNetwork", "2024-03-02", "21:00:00", 120000),
	}))
	require.NoError(t, store.UpsertSnapshots([]Snapshot{snap("GGNetwork", "2024-03-02", "21:00:00", 125000)}))

	rows, err := store.LatestDistinctDates("GGNetwork", 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 125000, rows[0].PlayersOnline)
	assert.Equal(t, "2024-03-01", rows[1].Date)
}

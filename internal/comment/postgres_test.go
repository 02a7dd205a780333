package comment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "pf",
			"POSTGRES_PASSWORD": "pf",
			"POSTGRES_DB":       "comments",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminating container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	dsn := "postgres://pf:pf@" + host + ":" + port.Port() + "/comments?sslmode=disable"

	repo, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	t.Run("add and get", func(t *testing.T) {
		c, err := repo.Add(ctx, NewComment{Username: "ada", Email: "ada@example.com", Text: "hello"})
		require.NoError(t, err)
		assert.NotZero(t, c.ID)

		got, err := repo.Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "hello", got.Text)
		assert.Equal(t, "ada", got.Username)

		require.NoError(t, repo.Delete(ctx, c.ID))
	})

	t.Run("invalid comment", func(t *testing.T) {
		_, err := repo.Add(ctx, NewComment{Username: "ada", Email: "ada@example.com"})
		assert.True(t, errors.Is(err, ErrInvalid))
	})

	t.Run("pages in both orders", func(t *testing.T) {
		seed(t, repo, "p1", "p2", "p3")

		first, err := repo.ListPage(ctx, Newest, "", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"p3", "p2"}, texts(first.Comments))

		second, err := repo.ListPage(ctx, Newest, first.NextCursor, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"p1"}, texts(second.Comments))

		end, err := repo.ListPage(ctx, Newest, second.NextCursor, 2)
		require.NoError(t, err)
		assert.Empty(t, end.Comments)
		assert.Equal(t, second.NextCursor, end.NextCursor)

		oldest, err := repo.ListPage(ctx, Oldest, "", 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"p1", "p2", "p3"}, texts(oldest.Comments))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.Get(ctx, 424242)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.True(t, errors.Is(repo.Delete(ctx, 424242), ErrNotFound))
	})

	t.Run("invalid cursor", func(t *testing.T) {
		_, err := repo.ListPage(ctx, Newest, "%%%", 2)
		assert.True(t, errors.Is(err, ErrInvalidCursor))
	})
}

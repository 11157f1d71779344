package handoff

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/pushchannel/internal/model"
)

func TestPostgres_FIFO(t *testing.T) {
	url := os.Getenv("PUSHCLIENT_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("PUSHCLIENT_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	// Unique channel per run keeps tests isolated in a shared table.
	channelID := "test-" + uuid.NewString()
	q, err := NewPostgres(ctx, pool, channelID, 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM handoff_queue WHERE channel_id = $1`, channelID)
	})

	_, ok := q.Dequeue()
	assert.False(t, ok)

	for i := 0; i < 5; i++ {
		q.Enqueue(textMsg(i))
	}
	assert.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		got, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, textMsg(i), got)
	}
	assert.Equal(t, 0, q.Len())

	q.Enqueue(model.Message{Kind: model.KindClientInvocation, Payload: `{"methodName":"Send"}`})
	entries, err := q.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.KindClientInvocation, entries[0].Message.Kind)

	got, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, model.KindClientInvocation, got.Kind)
}

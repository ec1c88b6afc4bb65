package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"composite/internal/platform/messaging"
	"composite/pkg/platform/sentinel"
)

func TestPublisher_KeepsOrderPerChannel(t *testing.T) {
	p := NewPublisher()
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, "products", messaging.Message{Key: "1", Value: []byte("a")}))
	require.NoError(t, p.Publish(ctx, "reviews", messaging.Message{Key: "1", Value: []byte("b")}))
	require.NoError(t, p.Publish(ctx, "products", messaging.Message{Key: "1", Value: []byte("c")}))

	products := p.Messages("products")
	require.Len(t, products, 2)
	assert.Equal(t, "a", string(products[0].Value))
	assert.Equal(t, "c", string(products[1].Value))
	assert.Len(t, p.Records(), 3)

	p.Reset()
	assert.Empty(t, p.Records())
}

func TestPublisher_RejectsAfterClose(t *testing.T) {
	p := NewPublisher()
	require.NoError(t, p.Close())

	err := p.Publish(context.Background(), "products", messaging.Message{Key: "1"})
	assert.ErrorIs(t, err, sentinel.ErrClosed)
}

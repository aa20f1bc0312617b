package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProviderDeterministic(t *testing.T) {
	p := NewMockProvider(16)
	ctx := context.Background()

	first, err := p.GenerateEmbedding(ctx, "the same text")
	require.NoError(t, err)
	second, err := p.GenerateEmbedding(ctx, "the same text")
	require.NoError(t, err)

	assert.Len(t, first, 16)
	assert.Equal(t, first, second)
	assert.Equal(t, 16, p.Dimension())
}

func TestMockProviderBatch(t *testing.T) {
	p := NewMockProvider(8)

	vecs, err := p.GenerateEmbeddings(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 8)
	assert.NotEqual(t, vecs[0], vecs[1])
}

func TestNewProviderSelection(t *testing.T) {
	mock := NewProvider("mock", "", "", 32)
	assert.IsType(t, &MockProvider{}, mock)
	assert.Equal(t, 32, mock.Dimension())

	openai := NewProvider("openai", "sk-test", "text-embedding-3-small", 0)
	assert.IsType(t, &OpenAIProvider{}, openai)
	assert.Equal(t, 1536, openai.Dimension())
}

package embedding

import "context"

// MockProvider generates deterministic embeddings from a text hash. It
// exists so callers can run without network access; identical texts
// always produce identical vectors.
type MockProvider struct {
	dimension int
}

// NewMockProvider creates a mock provider with the given dimension
func NewMockProvider(dimension int) *MockProvider {
	return &MockProvider{dimension: dimension}
}

func (p *MockProvider) Dimension() int {
	return p.dimension
}

func (p *MockProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embedding := make([]float32, p.dimension)
	hash := 0
	for _, c := range text {
		hash = hash*31 + int(c)
	}

	for i := 0; i < p.dimension; i++ {
		embedding[i] = float32((hash+i*7)%100)/100.0 + 0.01
	}

	return embedding, nil
}

func (p *MockProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := p.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// NewProvider returns the provider named by kind ("openai" or "mock").
func NewProvider(kind, apiKey, model string, dimension int) Provider {
	if kind == "openai" {
		return NewOpenAIProvider(apiKey, model)
	}
	return NewMockProvider(dimension)
}

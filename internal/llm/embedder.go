package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder turns text into dense vectors for similarity search.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelID() string
}

// OpenAIEmbedder calls the OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

func NewOpenAIEmbedder(apiKey, baseURL, model string, dimensions int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, &ErrInvalidResponse{Err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))}
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, &ErrInvalidResponse{Err: fmt.Errorf("embedding index %d out of range", d.Index)}
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (e *OpenAIEmbedder) ModelID() string {
	return e.model
}

// HashEmbedder is a deterministic bag-of-words embedder based on feature
// hashing. It needs no network and is used for the mock provider and tests.
type HashEmbedder struct {
	Dimensions int
}

func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &HashEmbedder{Dimensions: dimensions}
}

func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.Dimensions)
		for _, token := range tokenize(text) {
			h := fnv.New32a()
			h.Write([]byte(token))
			vec[h.Sum32()%uint32(e.Dimensions)]++
		}
		out[i] = normalize(vec)
	}
	return out, nil
}

func (e *HashEmbedder) ModelID() string {
	return fmt.Sprintf("hash-%d", e.Dimensions)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when the vectors differ in length or either is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

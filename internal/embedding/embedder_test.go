package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/folder-renamer/internal/common"
)

type stubModel struct {
	vectors [][]float32
	err     error
}

func (s stubModel) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	return s.vectors, s.err
}

func (s stubModel) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors[0], nil
}

func TestEmbed(t *testing.T) {
	ctx := context.Background()

	v, err := New(stubModel{vectors: [][]float32{{1, 0, 0}}}, "m", 3, nil).Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, v)

	_, err = New(stubModel{vectors: [][]float32{{1, 0}}}, "m", 3, nil).Embed(ctx, "hello")
	assert.ErrorContains(t, err, "dimension mismatch")

	_, err = New(stubModel{vectors: [][]float32{{1, 0}}}, "m", 0, nil).Embed(ctx, "hello")
	assert.NoError(t, err)

	_, err = New(stubModel{err: errors.New("down")}, "m", 0, nil).Embed(ctx, "hello")
	assert.ErrorContains(t, err, "down")

	_, err = New(stubModel{}, "m", 0, nil).Embed(ctx, "hello")
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	cfg := common.DefaultConfig()
	_, err := NewFromConfig(cfg, nil)
	assert.ErrorIs(t, err, ErrDisabled)

	cfg.Embeddings.Provider = "openai"
	cfg.LLM.APIKey = ""
	_, err = NewFromConfig(cfg, nil)
	assert.Error(t, err)

	cfg.Embeddings.Provider = "bogus"
	_, err = NewFromConfig(cfg, nil)
	assert.ErrorContains(t, err, "unsupported")
}

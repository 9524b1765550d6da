package classify

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/embedding"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
)

// Tokens is the lexical fingerprint of text: lowercase alphanumeric runs,
// deduplicated and sorted.
func Tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(fields) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Jaccard is |a∩b| / |a∪b| over token sets; 0 when either set is empty.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	inter := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

// Cosine similarity of two vectors; 0 for empty, mismatched or zero vectors.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Document is a file's text prepared for scoring.
type Document struct {
	Text      string
	Tokens    []string
	Embedding []float32
}

// Similarity is one way of scoring a document against label example features.
// The variant is chosen once at startup from the configured capabilities.
type Similarity interface {
	Mode() constants.SimilarityMode
	// Document prepares text for Score. An error means the variant could not
	// represent the text and the caller should fall back to lexical scoring.
	Document(ctx context.Context, text string) (Document, error)
	// Score returns false when the feature cannot be scored in this mode.
	Score(doc Document, f entity.LabelFeature) (float64, bool)
}

// LexicalSimilarity scores token sets with Jaccard.
type LexicalSimilarity struct{}

func (LexicalSimilarity) Mode() constants.SimilarityMode { return constants.ModeLexical }

func (LexicalSimilarity) Document(_ context.Context, text string) (Document, error) {
	return Document{Text: text, Tokens: Tokens(text)}, nil
}

func (LexicalSimilarity) Score(doc Document, f entity.LabelFeature) (float64, bool) {
	toks := f.Tokens
	if len(toks) == 0 {
		toks = Tokens(f.Text)
	}
	if len(toks) == 0 {
		return 0, false
	}
	return Jaccard(doc.Tokens, toks), true
}

// EmbeddingSimilarity scores embedding vectors with cosine similarity.
// Examples without a stored embedding are skipped.
type EmbeddingSimilarity struct {
	Embedder embedding.Embedder
}

func (EmbeddingSimilarity) Mode() constants.SimilarityMode { return constants.ModeEmbeddings }

func (s EmbeddingSimilarity) Document(ctx context.Context, text string) (Document, error) {
	doc := Document{Text: text, Tokens: Tokens(text)}
	v, err := s.Embedder.Embed(ctx, text)
	if err != nil {
		return doc, err
	}
	doc.Embedding = v
	return doc, nil
}

func (EmbeddingSimilarity) Score(doc Document, f entity.LabelFeature) (float64, bool) {
	if len(doc.Embedding) == 0 || len(f.Embedding) == 0 {
		return 0, false
	}
	return Cosine(doc.Embedding, f.Embedding), true
}

// NewSimilarity picks the embedding variant when an embedder is configured.
func NewSimilarity(e embedding.Embedder) Similarity {
	if e == nil {
		return LexicalSimilarity{}
	}
	return EmbeddingSimilarity{Embedder: e}
}

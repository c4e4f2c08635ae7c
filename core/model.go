package core

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"
)

// Embedding is a vector tagged with the provider that produced it.
// Vectors from different sources are never compared with each other.
type Embedding struct {
	Source string    `json:"source,omitempty"`
	Values []float64 `json:"values"`
}

func (e Embedding) IsEmpty() bool {
	return len(e.Values) == 0
}

func (e Embedding) Dim() int {
	return len(e.Values)
}

// UnmarshalJSON also accepts a bare array, the format written before vectors
// carried their source. Such values decode with an empty Source.
func (e *Embedding) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		e.Source = ""
		return json.Unmarshal(trimmed, &e.Values)
	}
	type plain Embedding
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*e = Embedding(p)
	return nil
}

// Book is the catalog entity consumed by recommendation and summarization.
type Book struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Authors          []string   `json:"authors"`
	Categories       []string   `json:"categories"`
	PublishedDate    string     `json:"published_date,omitempty"`
	ThumbnailURL     string     `json:"thumbnail_url,omitempty"`
	ShortDescription string     `json:"short_description,omitempty"`
	FullDescription  string     `json:"full_description,omitempty"`
	AISummary        string     `json:"ai_summary,omitempty"`
	Rating           *float64   `json:"average_rating,omitempty"`
	Embedding        *Embedding `json:"embedding,omitempty"`
}

func (b Book) HasEmbedding() bool {
	return b.Embedding != nil && !b.Embedding.IsEmpty()
}

// Description prefers the short form and falls back to the long one.
func (b Book) Description() string {
	if b.ShortDescription != "" {
		return b.ShortDescription
	}
	return b.FullDescription
}

// EmbeddingText joins the non-empty fields fed to an embedding provider:
// title, comma-joined authors, then description.
func (b Book) EmbeddingText() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{b.Title, strings.Join(b.Authors, ", "), b.Description()} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// AuthorLine renders authors for prompts, "Unknown Author" when none are known.
func (b Book) AuthorLine() string {
	if len(b.Authors) == 0 {
		return "Unknown Author"
	}
	return strings.Join(b.Authors, ", ")
}

// RatingScale is the canonical upper bound for Book.Rating.
const RatingScale = 5.0

// NormalizeRating maps a rating onto the canonical 0-5 scale. Values above 5
// are assumed to be on a 0-10 scale and halved; negatives clamp to zero.
func NormalizeRating(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > RatingScale:
		r = r / 2
		if r > RatingScale {
			return RatingScale
		}
		return r
	default:
		return r
	}
}

// BookField names the single fields the core is allowed to write back.
type BookField string

const (
	FieldEmbedding BookField = "embedding"
	FieldAISummary BookField = "ai_summary"
)

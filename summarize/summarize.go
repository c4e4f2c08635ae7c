// Package summarize writes book summaries, author bios and summaries of
// user supplied text through the generation provider chains.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/hubenschmidt/go-shelf/core"
	"github.com/hubenschmidt/go-shelf/llm"
)

const (
	// MaxTextChars bounds SummarizeText input, counted in characters.
	MaxTextChars    = 25000
	ChunkChars      = 1500
	DefaultMaxWords = 250

	BioUnavailable = "Biography unavailable at the moment."

	summaryTokens = 250
	bioTokens     = 300
)

// Author sources.
const (
	SourceOpenLibrary = "openlibrary"
	SourceGenerated   = "generated"
	SourceNone        = "none"
)

// Generator is satisfied by *llm.GenerateChain.
type Generator interface {
	Generate(ctx context.Context, p llm.Prompt) (llm.Generation, error)
}

// AuthorSource is satisfied by *OpenLibrary.
type AuthorSource interface {
	SearchAuthor(ctx context.Context, name string) (Author, error)
}

// Books reads a book and writes back its summary.
type Books interface {
	Get(ctx context.Context, id string) (core.Book, error)
	UpdateField(ctx context.Context, id string, field core.BookField, value any) error
}

type Author struct {
	Name        string   `json:"name"`
	BirthDate   string   `json:"birth_date,omitempty"`
	DeathDate   string   `json:"death_date,omitempty"`
	TopWork     string   `json:"top_work,omitempty"`
	WorkCount   int      `json:"work_count,omitempty"`
	TopSubjects []string `json:"top_subjects"`
	Bio         string   `json:"bio,omitempty"`
	ActiveYears string   `json:"active_years,omitempty"`
	Source      string   `json:"source"`
}

type TextSummary struct {
	Summary          string  `json:"summary"`
	InputWords       int     `json:"input_words"`
	SummaryWords     int     `json:"summary_words"`
	CompressionRatio float64 `json:"compression_ratio"`
	Chunks           int     `json:"chunks"`
	Source           string  `json:"source,omitempty"`
	Cached           bool    `json:"cached"`
}

type Summarizer struct {
	books     Books
	summaries Generator
	bios      Generator
	authors   AuthorSource
	log       zerolog.Logger
}

// New builds a Summarizer. summaries writes book and text summaries, bios
// writes author biographies when authors has no match.
//
//nolint:gocritic // zerolog.Logger passed by value
func New(books Books, summaries, bios Generator, authors AuthorSource, log zerolog.Logger) *Summarizer {
	return &Summarizer{
		books:     books,
		summaries: summaries,
		bios:      bios,
		authors:   authors,
		log:       log,
	}
}

// BookSummary generates a spoiler-free summary of the book and stores it on
// the book record. When every provider fails it returns a fixed fallback
// sentence, which is not persisted.
func (s *Summarizer) BookSummary(ctx context.Context, bookID string) (string, error) {
	book, err := s.books.Get(ctx, bookID)
	if err != nil {
		return "", err
	}

	gen, err := s.summaries.Generate(ctx, llm.Prompt{
		System:    "You are an expert book summarizer.",
		User:      bookSummaryPrompt(book),
		MaxTokens: summaryTokens,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("book_id", bookID).Msg("book summary unavailable, using fallback")
		return fallbackSummary(book), nil
	}

	if book.AISummary != gen.Text {
		if err := s.books.UpdateField(ctx, bookID, core.FieldAISummary, gen.Text); err != nil {
			s.log.Warn().Err(err).Str("book_id", bookID).Msg("persist summary failed")
		}
	}
	s.log.Info().Str("book_id", bookID).Str("source", gen.Source).Msg("book summary generated")
	return gen.Text, nil
}

func bookSummaryPrompt(b core.Book) string {
	return fmt.Sprintf("Write a spoiler-free, engaging, and concise summary (around 150 words) "+
		"for the book titled '%s' by %s. "+
		"Focus on the tone, main ideas, and emotional appeal; avoid revealing any major plot twists.",
		b.Title, b.AuthorLine())
}

func fallbackSummary(b core.Book) string {
	return fmt.Sprintf("'%s' by %s is a remarkable book that explores deep ideas and emotions. "+
		"The detailed AI summary is currently unavailable.", b.Title, b.AuthorLine())
}

// AuthorDetail returns what is known about an author: Open Library first,
// then a generated bio, then BioUnavailable. Provider failures never
// surface as errors.
func (s *Summarizer) AuthorDetail(ctx context.Context, name string) (Author, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Author{}, core.ErrEmptyInput
	}

	author, err := s.authors.SearchAuthor(ctx, name)
	if err != nil {
		s.log.Debug().Err(err).Str("author", name).Msg("open library lookup failed, generating bio")
		author = s.generatedAuthor(ctx, name)
	}
	return author, nil
}

func (s *Summarizer) generatedAuthor(ctx context.Context, name string) Author {
	a := Author{Name: name, TopSubjects: []string{}, Source: SourceGenerated}
	gen, err := s.bios.Generate(ctx, llm.Prompt{
		System: "You are a literary historian.",
		User: fmt.Sprintf("Write a short, factual biography (under 120 words) of the author '%s'. "+
			"Include their writing style, themes, and literary significance if known. "+
			"Avoid making up data if unknown.", name),
		MaxTokens: bioTokens,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("author", name).Msg("bio generation failed")
		a.Bio = BioUnavailable
		a.Source = SourceNone
		return a
	}
	a.Bio = gen.Text
	return a
}

// CheckText validates input for Text.
func CheckText(text string) error {
	if strings.TrimSpace(text) == "" {
		return core.ErrEmptyInput
	}
	if n := utf8.RuneCountInString(text); n > MaxTextChars {
		return fmt.Errorf("%w: %d characters, limit %d", core.ErrInputTooLong, n, MaxTextChars)
	}
	return nil
}

// Text summarizes user supplied text in at most maxWords words. Long text is
// summarized chunk by chunk and, when the joined chunk summaries are still
// too long, summarized once more. Chunks whose generation fails are skipped;
// if all fail the error wraps core.ErrProviderUnavailable.
func (s *Summarizer) Text(ctx context.Context, text string, maxWords int) (TextSummary, error) {
	if err := CheckText(text); err != nil {
		return TextSummary{}, err
	}
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}

	inputWords := len(strings.Fields(text))
	chunks := SplitChunks(text, ChunkChars)

	var (
		parts  []string
		source string
		errs   []error
	)
	for _, chunk := range chunks {
		gen, err := s.summaries.Generate(ctx, textPrompt(chunk, maxWords))
		if err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		parts = append(parts, gen.Text)
		source = gen.Source
	}
	if len(parts) == 0 {
		return TextSummary{}, fmt.Errorf("%w: %w", core.ErrProviderUnavailable, errors.Join(errs...))
	}
	if len(errs) > 0 {
		s.log.Warn().Int("failed", len(errs)).Int("chunks", len(chunks)).Msg("some chunks were not summarized")
	}

	final := strings.Join(parts, " ")
	if len(chunks) > 1 && len(strings.Fields(final)) > maxWords {
		gen, err := s.summaries.Generate(ctx, textPrompt(final, maxWords))
		if err != nil {
			s.log.Warn().Err(err).Msg("second pass failed, keeping joined chunk summaries")
		} else {
			final = gen.Text
			source = gen.Source
		}
	}

	summaryWords := len(strings.Fields(final))
	return TextSummary{
		Summary:          final,
		InputWords:       inputWords,
		SummaryWords:     summaryWords,
		CompressionRatio: compressionRatio(inputWords, summaryWords),
		Chunks:           len(chunks),
		Source:           source,
	}, nil
}

func textPrompt(text string, maxWords int) llm.Prompt {
	return llm.Prompt{
		System:    "You summarize documents faithfully and concisely.",
		User:      fmt.Sprintf("Summarize the following text in at most %d words. Keep the key facts and do not add anything.\n\n%s", maxWords, text),
		MaxTokens: int(math.Ceil(float64(maxWords) * 1.3)),
	}
}

// compressionRatio is input over summary words, at least 1, two decimals.
func compressionRatio(inputWords, summaryWords int) float64 {
	r := float64(inputWords) / float64(max(1, summaryWords))
	return math.Round(max(1, r)*100) / 100
}

// SplitChunks cuts text into pieces of at most maxChars characters. A piece
// ends after the last '.', '?' or '!' in its window when that falls past 60%
// of the window.
func SplitChunks(text string, maxChars int) []string {
	rs := []rune(strings.TrimSpace(text))
	var chunks []string
	for start := 0; start < len(rs); {
		end := min(start+maxChars, len(rs))
		cut := end
		if sep := lastSentenceEnd(rs, start, end); float64(sep) > float64(start)+float64(maxChars)*0.6 {
			cut = sep + 1
		}
		if chunk := strings.TrimSpace(string(rs[start:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		start = cut
	}
	return chunks
}

func lastSentenceEnd(rs []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		switch rs[i] {
		case '.', '?', '!':
			return i
		}
	}
	return -1
}

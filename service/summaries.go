package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/hubenschmidt/go-shelf/cache"
	"github.com/hubenschmidt/go-shelf/coordinator"
	"github.com/hubenschmidt/go-shelf/core"
	"github.com/hubenschmidt/go-shelf/summarize"
)

type BookSummary struct {
	Status  coordinator.Status `json:"status"`
	Started bool               `json:"started,omitempty"`
	Summary string             `json:"summary,omitempty"`
	Cached  bool               `json:"cached"`
}

// BookSummary returns the persisted or cached summary, or starts
// generating one.
func (s *Service) BookSummary(ctx context.Context, bookID string) (BookSummary, error) {
	book, err := s.store.Get(ctx, bookID)
	if err != nil {
		return BookSummary{}, err
	}
	if book.AISummary != "" {
		return BookSummary{Status: coordinator.StatusReady, Summary: book.AISummary, Cached: true}, nil
	}

	res, err := s.coord.Request(ctx, coordinator.KindBookSummary, bookID, nil)
	if err != nil {
		return BookSummary{}, err
	}
	out := BookSummary{Status: res.Status, Started: res.Started}
	if res.Ready() {
		if err := res.Decode(&out.Summary); err != nil {
			return BookSummary{}, fmt.Errorf("decode summary: %w", err)
		}
		out.Cached = true
	}
	return out, nil
}

type TextSummary struct {
	Status  coordinator.Status     `json:"status"`
	Started bool                   `json:"started,omitempty"`
	Key     string                 `json:"key"`
	Result  *summarize.TextSummary `json:"result,omitempty"`
}

// SummarizeText validates text and returns its cached summary or starts
// one. Repeating the call with the same text and maxWords polls the same
// computation.
func (s *Service) SummarizeText(ctx context.Context, text string, maxWords int) (TextSummary, error) {
	if err := summarize.CheckText(text); err != nil {
		return TextSummary{}, err
	}
	if maxWords <= 0 {
		maxWords = summarize.DefaultMaxWords
	}
	digest := cache.TextDigest(text, maxWords)

	res, err := s.coord.Request(ctx, coordinator.KindTextSummary, digest, textArgs{Text: text, MaxWords: maxWords})
	if err != nil {
		return TextSummary{}, err
	}
	out := TextSummary{Status: res.Status, Started: res.Started, Key: digest}
	if res.Ready() {
		var r summarize.TextSummary
		if err := res.Decode(&r); err != nil {
			return TextSummary{}, fmt.Errorf("decode text summary: %w", err)
		}
		r.Cached = true
		out.Result = &r
	}
	return out, nil
}

type AuthorDetail struct {
	Status  coordinator.Status `json:"status"`
	Started bool               `json:"started,omitempty"`
	Author  *summarize.Author  `json:"author,omitempty"`
}

// AuthorDetail returns the cached author detail or starts resolving it
// through Open Library and the bio generators.
func (s *Service) AuthorDetail(ctx context.Context, name string) (AuthorDetail, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return AuthorDetail{}, core.ErrEmptyInput
	}

	res, err := s.coord.Request(ctx, coordinator.KindAuthorDetail, name, nil)
	if err != nil {
		return AuthorDetail{}, err
	}
	out := AuthorDetail{Status: res.Status, Started: res.Started}
	if res.Ready() {
		var a summarize.Author
		if err := res.Decode(&a); err != nil {
			return AuthorDetail{}, fmt.Errorf("decode author detail: %w", err)
		}
		out.Author = &a
	}
	return out, nil
}

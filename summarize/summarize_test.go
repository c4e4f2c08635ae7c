package summarize

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/go-shelf/core"
	"github.com/hubenschmidt/go-shelf/llm"
	"github.com/hubenschmidt/go-shelf/store"
)

// scriptedGenerator answers with reply(prompt) and records prompts.
type scriptedGenerator struct {
	mu      sync.Mutex
	prompts []llm.Prompt
	reply   func(p llm.Prompt) (string, error)
}

func (g *scriptedGenerator) Generate(_ context.Context, p llm.Prompt) (llm.Generation, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, p)
	g.mu.Unlock()
	text, err := g.reply(p)
	if err != nil {
		return llm.Generation{}, err
	}
	return llm.Generation{Text: text, Source: "fake"}, nil
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func failing() *scriptedGenerator {
	return &scriptedGenerator{reply: func(llm.Prompt) (string, error) {
		return "", core.ErrProviderUnavailable
	}}
}

func fixed(text string) *scriptedGenerator {
	return &scriptedGenerator{reply: func(llm.Prompt) (string, error) { return text, nil }}
}

type noAuthors struct{}

func (noAuthors) SearchAuthor(_ context.Context, name string) (Author, error) {
	return Author{}, core.NewOpError("search author", name, core.ErrEntityNotFound)
}

func seedBooks(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	require.NoError(t, s.Put(context.Background(), core.Book{ID: "b1", Title: "Dune", Authors: []string{"Frank Herbert"}}))
	return s
}

func TestBookSummary_PersistsGeneratedText(t *testing.T) {
	books := seedBooks(t)
	gen := fixed("A desert planet and a family feud.")
	s := New(books, gen, failing(), noAuthors{}, zerolog.Nop())

	got, err := s.BookSummary(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "A desert planet and a family feud.", got)

	book, err := books.Get(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, got, book.AISummary)

	require.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0].User, "'Dune' by Frank Herbert")
	assert.Equal(t, 250, gen.prompts[0].MaxTokens)
}

func TestBookSummary_FallbackIsNotPersisted(t *testing.T) {
	books := seedBooks(t)
	s := New(books, failing(), failing(), noAuthors{}, zerolog.Nop())

	got, err := s.BookSummary(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "'Dune' by Frank Herbert is a remarkable book that explores deep ideas and emotions. "+
		"The detailed AI summary is currently unavailable.", got)

	book, err := books.Get(context.Background(), "b1")
	require.NoError(t, err)
	assert.Empty(t, book.AISummary)
}

func TestBookSummary_UnknownBook(t *testing.T) {
	s := New(seedBooks(t), fixed("x"), fixed("x"), noAuthors{}, zerolog.Nop())
	_, err := s.BookSummary(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrEntityNotFound)
}

func TestOpenLibrary_SearchAuthor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/authors.json", r.URL.Path)
		switch r.URL.Query().Get("q") {
		case "Ursula K. Le Guin":
			_, _ = w.Write([]byte(`{"docs":[{"name":"Ursula K. Le Guin","birth_date":"1929","top_work":"A Wizard of Earthsea",
				"work_count":300,"top_subjects":["a","b","c","d","e","f"],"bio":{"type":"/type/text","value":"x"}}]}`))
		default:
			_, _ = w.Write([]byte(`{"docs":[]}`))
		}
	}))
	defer srv.Close()

	ol := NewOpenLibrary(srv.URL, time.Second)
	a, err := ol.SearchAuthor(context.Background(), "Ursula K. Le Guin")
	require.NoError(t, err)
	assert.Equal(t, "Ursula K. Le Guin", a.Name)
	assert.Equal(t, "A Wizard of Earthsea", a.TopWork)
	assert.Equal(t, 300, a.WorkCount)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, a.TopSubjects)
	assert.Equal(t, "1929 – ?", a.ActiveYears)
	assert.Empty(t, a.Bio)
	assert.Equal(t, SourceOpenLibrary, a.Source)

	_, err = ol.SearchAuthor(context.Background(), "Nobody")
	assert.ErrorIs(t, err, core.ErrEntityNotFound)
}

func TestAuthorDetail_FallsBackToGeneratedBio(t *testing.T) {
	bios := fixed("A novelist.")
	s := New(seedBooks(t), failing(), bios, noAuthors{}, zerolog.Nop())

	a, err := s.AuthorDetail(context.Background(), "  Jane Doe ")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", a.Name)
	assert.Equal(t, "A novelist.", a.Bio)
	assert.Equal(t, SourceGenerated, a.Source)
	assert.Equal(t, 1, bios.calls())

	_, err = s.AuthorDetail(context.Background(), " ")
	assert.ErrorIs(t, err, core.ErrEmptyInput)
}

func TestAuthorDetail_Unavailable(t *testing.T) {
	s := New(seedBooks(t), failing(), failing(), noAuthors{}, zerolog.Nop())
	a, err := s.AuthorDetail(context.Background(), "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, BioUnavailable, a.Bio)
	assert.Equal(t, SourceNone, a.Source)
}

func TestCheckText(t *testing.T) {
	assert.ErrorIs(t, CheckText("   "), core.ErrEmptyInput)
	assert.ErrorIs(t, CheckText(strings.Repeat("é", MaxTextChars+1)), core.ErrInputTooLong)
	assert.NoError(t, CheckText(strings.Repeat("é", MaxTextChars)))
}

func TestSplitChunks(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		assert.Equal(t, []string{"One. Two."}, SplitChunks("  One. Two.  ", 1500))
	})

	t.Run("breaks at a late sentence end", func(t *testing.T) {
		text := strings.Repeat("a", 7) + ". " + strings.Repeat("b", 10)
		// window of 10: the '.' sits at index 7, past 60% of the window.
		chunks := SplitChunks(text, 10)
		require.NotEmpty(t, chunks)
		assert.Equal(t, strings.Repeat("a", 7)+".", chunks[0])
	})

	t.Run("ignores an early sentence end", func(t *testing.T) {
		text := "ab. " + strings.Repeat("c", 20)
		chunks := SplitChunks(text, 10)
		require.NotEmpty(t, chunks)
		assert.Equal(t, "ab. cccccc", chunks[0])
	})

	t.Run("chunks cover the text", func(t *testing.T) {
		text := strings.Repeat("Lorem ipsum dolor sit amet. ", 200)
		chunks := SplitChunks(text, ChunkChars)
		assert.Greater(t, len(chunks), 1)
		for _, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c)), ChunkChars)
		}
		assert.Equal(t, strings.Join(strings.Fields(text), " "), strings.Join(strings.Fields(strings.Join(chunks, " ")), " "))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, SplitChunks("  ", 10))
	})
}

func TestText_SingleChunk(t *testing.T) {
	gen := fixed("short summary")
	s := New(seedBooks(t), gen, failing(), noAuthors{}, zerolog.Nop())

	text := strings.Repeat("word ", 100)
	got, err := s.Text(context.Background(), text, 50)
	require.NoError(t, err)
	assert.Equal(t, "short summary", got.Summary)
	assert.Equal(t, 100, got.InputWords)
	assert.Equal(t, 2, got.SummaryWords)
	assert.Equal(t, 1, got.Chunks)
	assert.InDelta(t, 50.0, got.CompressionRatio, 1e-9)
	assert.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0].User, "at most 50 words")
}

func TestText_SecondPassWhenCombinedTooLong(t *testing.T) {
	gen := &scriptedGenerator{reply: func(p llm.Prompt) (string, error) {
		if strings.Contains(p.User, "chunk-summary") {
			return "final", nil
		}
		return "chunk-summary one two three", nil
	}}
	s := New(seedBooks(t), gen, failing(), noAuthors{}, zerolog.Nop())

	text := strings.Repeat("This is a sentence. ", 200)
	got, err := s.Text(context.Background(), text, 5)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Summary)
	assert.Greater(t, got.Chunks, 1)
	assert.Equal(t, got.Chunks+1, gen.calls())
}

func TestText_SkipsFailedChunks(t *testing.T) {
	n := 0
	gen := &scriptedGenerator{reply: func(llm.Prompt) (string, error) {
		n++
		if n == 1 {
			return "", errors.New("boom")
		}
		return "ok", nil
	}}
	s := New(seedBooks(t), gen, failing(), noAuthors{}, zerolog.Nop())

	text := strings.Repeat("This is a sentence. ", 100)
	got, err := s.Text(context.Background(), text, 500)
	require.NoError(t, err)
	assert.Equal(t, got.Chunks-1, len(strings.Fields(got.Summary)))
}

func TestText_AllChunksFail(t *testing.T) {
	s := New(seedBooks(t), failing(), failing(), noAuthors{}, zerolog.Nop())
	_, err := s.Text(context.Background(), "Some text.", 50)
	assert.ErrorIs(t, err, core.ErrProviderUnavailable)
}

func TestCompressionRatio(t *testing.T) {
	assert.InDelta(t, 1.0, compressionRatio(3, 10), 1e-9)
	assert.InDelta(t, 3.33, compressionRatio(10, 3), 1e-9)
	assert.InDelta(t, 7.0, compressionRatio(7, 0), 1e-9)
}

package summarize

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/hubenschmidt/go-shelf/core"
)

const DefaultOpenLibraryURL = "https://openlibrary.org"

// OpenLibrary looks authors up in the Open Library search API.
type OpenLibrary struct {
	client  *http.Client
	baseURL string
}

func NewOpenLibrary(baseURL string, timeout time.Duration) *OpenLibrary {
	if baseURL == "" {
		baseURL = DefaultOpenLibraryURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenLibrary{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type authorSearch struct {
	Docs []authorDoc `json:"docs"`
}

type authorDoc struct {
	Name        string          `json:"name"`
	BirthDate   string          `json:"birth_date"`
	DeathDate   string          `json:"death_date"`
	TopWork     string          `json:"top_work"`
	WorkCount   int             `json:"work_count"`
	TopSubjects []string        `json:"top_subjects"`
	Bio         json.RawMessage `json:"bio"`
}

// SearchAuthor returns the best match for name. No match is
// core.ErrEntityNotFound.
func (o *OpenLibrary) SearchAuthor(ctx context.Context, name string) (Author, error) {
	endpoint := o.baseURL + "/search/authors.json?q=" + url.QueryEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Author{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return Author{}, fmt.Errorf("open library request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Author{}, fmt.Errorf("open library status %d: %s", resp.StatusCode, body)
	}

	var out authorSearch
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return Author{}, fmt.Errorf("failed to decode open library response: %w", err)
	}
	if len(out.Docs) == 0 {
		return Author{}, core.NewOpError("search author", name, core.ErrEntityNotFound)
	}
	return authorFromDoc(name, out.Docs[0]), nil
}

func authorFromDoc(query string, doc authorDoc) Author {
	a := Author{
		Name:        doc.Name,
		BirthDate:   doc.BirthDate,
		DeathDate:   doc.DeathDate,
		TopWork:     doc.TopWork,
		WorkCount:   doc.WorkCount,
		TopSubjects: doc.TopSubjects,
		ActiveYears: orUnknown(doc.BirthDate) + " – " + orUnknown(doc.DeathDate),
		Source:      SourceOpenLibrary,
	}
	if a.Name == "" {
		a.Name = query
	}
	if len(a.TopSubjects) > 5 {
		a.TopSubjects = a.TopSubjects[:5]
	}
	if a.TopSubjects == nil {
		a.TopSubjects = []string{}
	}
	// bio is sometimes an object; only plain strings are kept.
	var bio string
	if json.Unmarshal(doc.Bio, &bio) == nil {
		a.Bio = bio
	}
	return a
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

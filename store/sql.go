package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/hubenschmidt/go-shelf/core"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQLStore implements Store over database/sql. SQLite and PostgreSQL share
// the statements; only placeholders and the migration differ.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

const bookColumns = `b.id, b.title, b.authors, b.categories, b.published_date, b.thumbnail_url,
	b.short_description, b.full_description, b.ai_summary, b.average_rating, b.embedding`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner, extra ...any) (core.Book, error) {
	var (
		b                   core.Book
		authors, categories string
		rating              sql.NullFloat64
		embedding           sql.NullString
	)
	dest := append([]any{
		&b.ID, &b.Title, &authors, &categories, &b.PublishedDate, &b.ThumbnailURL,
		&b.ShortDescription, &b.FullDescription, &b.AISummary, &rating, &embedding,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return b, err
	}

	if err := json.Unmarshal([]byte(authors), &b.Authors); err != nil {
		return b, fmt.Errorf("unmarshal authors: %w", err)
	}
	if err := json.Unmarshal([]byte(categories), &b.Categories); err != nil {
		return b, fmt.Errorf("unmarshal categories: %w", err)
	}
	if rating.Valid {
		r := core.NormalizeRating(rating.Float64)
		b.Rating = &r
	}
	if embedding.Valid && embedding.String != "" && embedding.String != "null" {
		var e core.Embedding
		if err := json.Unmarshal([]byte(embedding.String), &e); err != nil {
			return b, fmt.Errorf("unmarshal embedding: %w", err)
		}
		if !e.IsEmpty() {
			b.Embedding = &e
		}
	}
	return b, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (core.Book, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+bookColumns+` FROM books b WHERE b.id = ?`), id)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Book{}, core.NewOpError("get book", id, core.ErrEntityNotFound)
	}
	if err != nil {
		return core.Book{}, core.NewOpError("get book", id, err)
	}
	return b, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *SQLStore) Query(ctx context.Context, f Filter) ([]core.Book, error) {
	var (
		where []string
		args  []any
	)
	if len(f.IDs) > 0 {
		where = append(where, "b.id IN ("+placeholders(len(f.IDs))+")")
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	if len(f.ExcludeIDs) > 0 {
		where = append(where, "b.id NOT IN ("+placeholders(len(f.ExcludeIDs))+")")
		for _, id := range f.ExcludeIDs {
			args = append(args, id)
		}
	}

	query := `SELECT ` + bookColumns + ` FROM books b`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY b.title, b.id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []core.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func marshalEmbedding(e *core.Embedding) (any, error) {
	if e == nil || e.IsEmpty() {
		return nil, nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding: %w", err)
	}
	return string(data), nil
}

func marshalList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	data, err := json.Marshal(v)
	return string(data), err
}

func (s *SQLStore) Put(ctx context.Context, b core.Book) error {
	authors, err := marshalList(b.Authors)
	if err != nil {
		return fmt.Errorf("marshal authors: %w", err)
	}
	categories, err := marshalList(b.Categories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	embedding, err := marshalEmbedding(b.Embedding)
	if err != nil {
		return err
	}
	var rating any
	if b.Rating != nil {
		rating = core.NormalizeRating(*b.Rating)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO books (
			id, title, authors, categories, published_date, thumbnail_url,
			short_description, full_description, ai_summary, average_rating, embedding
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			authors = excluded.authors,
			categories = excluded.categories,
			published_date = excluded.published_date,
			thumbnail_url = excluded.thumbnail_url,
			short_description = excluded.short_description,
			full_description = excluded.full_description,
			ai_summary = excluded.ai_summary,
			average_rating = excluded.average_rating,
			embedding = excluded.embedding`),
		b.ID, b.Title, authors, categories, b.PublishedDate, b.ThumbnailURL,
		b.ShortDescription, b.FullDescription, b.AISummary, rating, embedding,
	)
	if err != nil {
		return fmt.Errorf("upsert book: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdateField(ctx context.Context, id string, field core.BookField, value any) error {
	v, err := fieldValue(field, value)
	if err != nil {
		return core.NewOpError("update book", id, err)
	}

	var (
		column string
		arg    any
	)
	switch field {
	case core.FieldEmbedding:
		e := v.(core.Embedding)
		column = "embedding"
		if arg, err = marshalEmbedding(&e); err != nil {
			return core.NewOpError("update book", id, err)
		}
	case core.FieldAISummary:
		column, arg = "ai_summary", v
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE books SET `+column+` = ? WHERE id = ?`), arg, id)
	if err != nil {
		return core.NewOpError("update book", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.NewOpError("update book", id, err)
	}
	if n == 0 {
		return core.NewOpError("update book", id, core.ErrEntityNotFound)
	}
	return nil
}

func (s *SQLStore) User(ctx context.Context, id string) (core.User, error) {
	var u core.User
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, email, name FROM users WHERE id = ?`), id).
		Scan(&u.ID, &u.Email, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return u, core.NewOpError("get user", id, core.ErrUserNotFound)
	}
	if err != nil {
		return u, core.NewOpError("get user", id, err)
	}
	return u, nil
}

func (s *SQLStore) PutUser(ctx context.Context, u core.User) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO users (id, email, name) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET email = excluded.email, name = excluded.name`),
		u.ID, u.Email, u.Name)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *SQLStore) Interactions(ctx context.Context, userID string) ([]core.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+bookColumns+`, i.status, i.is_favorite
		FROM interactions i JOIN books b ON b.id = i.book_id
		WHERE i.user_id = ?
		ORDER BY b.title, b.id`), userID)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []core.Interaction
	for rows.Next() {
		var (
			status   string
			favorite bool
		)
		b, err := scanBook(rows, &status, &favorite)
		if err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out = append(out, core.Interaction{
			UserID:     userID,
			BookID:     b.ID,
			Status:     core.Status(status),
			IsFavorite: favorite,
			Book:       &b,
		})
	}
	return out, rows.Err()
}

func (s *SQLStore) Interaction(ctx context.Context, userID, bookID string) (core.Interaction, bool, error) {
	in := core.Interaction{UserID: userID, BookID: bookID}
	var status string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT status, is_favorite FROM interactions WHERE user_id = ? AND book_id = ?`), userID, bookID).
		Scan(&status, &in.IsFavorite)
	if errors.Is(err, sql.ErrNoRows) {
		return in, false, nil
	}
	if err != nil {
		return in, false, fmt.Errorf("query interaction: %w", err)
	}
	in.Status = core.Status(status)
	return in, true, nil
}

func (s *SQLStore) RecordInteraction(ctx context.Context, in core.Interaction) error {
	if _, err := s.Get(ctx, in.BookID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO interactions (user_id, book_id, status, is_favorite) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, book_id) DO UPDATE SET
			status = excluded.status, is_favorite = excluded.is_favorite`),
		in.UserID, in.BookID, string(in.Status), in.IsFavorite)
	if err != nil {
		return fmt.Errorf("upsert interaction: %w", err)
	}
	return nil
}

func (s *SQLStore) Reviews(ctx context.Context, bookID string) ([]core.Review, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, user_id, book_id, rating, comment, created_at
		FROM reviews WHERE book_id = ?
		ORDER BY created_at DESC, id DESC`), bookID)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var out []core.Review
	for rows.Next() {
		var (
			r       core.Review
			created int64
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.BookID, &r.Rating, &r.Comment, &created); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		r.CreatedAt = time.UnixMilli(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) AddReview(ctx context.Context, r core.Review) (core.Review, error) {
	if _, err := s.Get(ctx, r.BookID); err != nil {
		return core.Review{}, err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = time.UnixMilli(r.CreatedAt.UnixMilli())

	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO reviews (user_id, book_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`),
		r.UserID, r.BookID, r.Rating, r.Comment, r.CreatedAt.UnixMilli()).Scan(&r.ID)
	if err != nil {
		return core.Review{}, fmt.Errorf("insert review: %w", err)
	}
	return r, nil
}

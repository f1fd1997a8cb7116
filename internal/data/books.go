package data

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/aoideee/bookreviews/internal/validator"
)

// MinPublishedYear is the earliest publication year the catalogue accepts.
const MinPublishedYear = 1000

// Book represents a single catalogue entry. CreatedBy records who added it;
// books carry no owner-only rules.
type Book struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Genre         string    `json:"genre"`
	Description   string    `json:"description"`
	PublishedYear int       `json:"publishedYear"`
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     uuid.UUID `json:"createdBy"`
}

// BookWithRating is a Book plus its live rating aggregate.
type BookWithRating struct {
	Book
	RatingSummary
}

// Normalize trims the free-text fields in place.
func (b *Book) Normalize() {
	b.Title = strings.TrimSpace(b.Title)
	b.Author = strings.TrimSpace(b.Author)
	b.Genre = strings.TrimSpace(b.Genre)
	b.Description = strings.TrimSpace(b.Description)
}

// ValidateBook checks a normalized book. now supplies the current year bound.
func ValidateBook(v *validator.Validator, book *Book, now time.Time) {
	v.Check(book.Title != "", "title", "must be provided")
	v.Check(len(book.Title) <= 500, "title", "must not be more than 500 bytes long")

	v.Check(book.Author != "", "author", "must be provided")
	v.Check(len(book.Author) <= 500, "author", "must not be more than 500 bytes long")

	v.Check(book.Genre != "", "genre", "must be provided")
	v.Check(len(book.Genre) <= 100, "genre", "must not be more than 100 bytes long")

	v.Check(book.Description != "", "description", "must be provided")

	v.Check(book.PublishedYear != 0, "publishedYear", "must be provided")
	v.Check(book.PublishedYear >= MinPublishedYear, "publishedYear", "must be 1000 or later")
	v.Check(book.PublishedYear <= now.Year(), "publishedYear", "must not be in the future")
}

// BookModel wraps a *sql.DB connection pool and implements BookStore.
type BookModel struct {
	DB *sql.DB // Shared database connection pool
}

// Insert adds a new book. The id is assigned here and created_at is read
// back from the database.
func (m BookModel) Insert(ctx context.Context, book *Book) error {
	query := `
		INSERT INTO books (id, title, author, genre, description, published_year, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	book.ID = uuid.New()

	args := []any{
		book.ID,
		book.Title,
		book.Author,
		book.Genre,
		book.Description,
		book.PublishedYear,
		book.CreatedBy,
	}

	err := m.DB.QueryRowContext(ctx, query, args...).Scan(&book.CreatedAt)
	return errors.Wrap(err, "insert book")
}

// Get retrieves a single book by its primary key.
// Returns ErrRecordNotFound if no book with the given id exists.
func (m BookModel) Get(ctx context.Context, id uuid.UUID) (*Book, error) {
	query := `
		SELECT id, title, author, genre, description, published_year, created_at, created_by
		FROM books
		WHERE id = $1`

	var book Book
	err := m.DB.QueryRowContext(ctx, query, id).Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.Genre,
		&book.Description,
		&book.PublishedYear,
		&book.CreatedAt,
		&book.CreatedBy,
	)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, errors.Wrapf(err, "get book %s", id)
		}
	}
	return &book, nil
}

// GetAll lists books newest first. author and genre are optional
// case-insensitive substring filters; when both are set a book must match both.
func (m BookModel) GetAll(ctx context.Context, author, genre string, filters Filters) ([]*BookWithRating, Metadata, error) {
	// An empty filter value turns its condition off.
	where := `
		WHERE ($1::text = '' OR b.author ILIKE $2)
		AND ($3::text = '' OR b.genre ILIKE $4)`
	args := []any{author, containsPattern(author), genre, containsPattern(genre)}

	return m.listWithRatings(ctx, where, args, filters)
}

// Search matches query case-insensitively against title or author.
func (m BookModel) Search(ctx context.Context, query string, filters Filters) ([]*BookWithRating, Metadata, error) {
	where := `
		WHERE b.title ILIKE $1 OR b.author ILIKE $1`
	args := []any{containsPattern(query)}

	return m.listWithRatings(ctx, where, args, filters)
}

// listWithRatings runs one page of books matching where, each joined with its
// rating aggregate, alongside a count of every matching book. The two queries
// run concurrently.
func (m BookModel) listWithRatings(ctx context.Context, where string, args []any, filters Filters) ([]*BookWithRating, Metadata, error) {
	n := len(args)
	pageQuery := `
		SELECT b.id, b.title, b.author, b.genre, b.description, b.published_year, b.created_at, b.created_by,
			COALESCE(r.total, 0), COALESCE(r.rating_sum, 0)
		FROM books b
		LEFT JOIN (
			SELECT book_id, COUNT(*) AS total, SUM(rating) AS rating_sum
			FROM reviews
			GROUP BY book_id
		) r ON r.book_id = b.id` + where + `
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	countQuery := `SELECT COUNT(*) FROM books b` + where

	var (
		books        []*BookWithRating
		totalRecords int
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.DB.QueryRowContext(gctx, countQuery, args...).Scan(&totalRecords)
	})

	g.Go(func() error {
		pageArgs := append(append([]any{}, args...), filters.limit(), filters.offset())
		rows, err := m.DB.QueryContext(gctx, pageQuery, pageArgs...)
		if err != nil {
			return err
		}
		// Always close the result set when we are done to free the database connection.
		defer rows.Close()

		books = []*BookWithRating{}
		for rows.Next() {
			var (
				book       BookWithRating
				total, sum int
			)
			err := rows.Scan(
				&book.ID,
				&book.Title,
				&book.Author,
				&book.Genre,
				&book.Description,
				&book.PublishedYear,
				&book.CreatedAt,
				&book.CreatedBy,
				&total,
				&sum,
			)
			if err != nil {
				return err
			}
			book.RatingSummary = SummarizeRatings(sum, total)
			books = append(books, &book)
		}

		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, Metadata{}, errors.Wrap(err, "list books")
	}

	return books, CalculateMetadata(totalRecords, filters), nil
}

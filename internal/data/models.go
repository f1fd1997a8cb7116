// Package data provides the data models and database interaction logic
// for the book review service.
package data

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

var (
	// ErrRecordNotFound is returned when a query finds no matching row.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when a user with the same email already exists.
	ErrDuplicateEmail = errors.New("duplicate email")
	// ErrDuplicateReview is returned when the user already reviewed the book.
	ErrDuplicateReview = errors.New("duplicate review")
)

// PostgreSQL error codes the models translate into sentinel errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Constraint names from migrations/000001_create_tables.up.sql.
const (
	usersEmailKey      = "users_email_key"
	reviewsBookUserKey = "reviews_book_id_user_id_key"
)

// UserStore is the persistence contract for user accounts.
type UserStore interface {
	Insert(ctx context.Context, user *User) error
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// BookStore is the persistence contract for the catalogue.
type BookStore interface {
	Insert(ctx context.Context, book *Book) error
	Get(ctx context.Context, id uuid.UUID) (*Book, error)
	GetAll(ctx context.Context, author, genre string, filters Filters) ([]*BookWithRating, Metadata, error)
	Search(ctx context.Context, query string, filters Filters) ([]*BookWithRating, Metadata, error)
}

// ReviewStore is the persistence contract for reviews and their aggregates.
type ReviewStore interface {
	Insert(ctx context.Context, review *Review) error
	Get(ctx context.Context, id uuid.UUID) (*Review, error)
	GetForUserAndBook(ctx context.Context, userID, bookID uuid.UUID) (*Review, error)
	GetAllForBook(ctx context.Context, bookID uuid.UUID, filters Filters) ([]*ReviewWithAuthor, Metadata, error)
	GetRatingSummary(ctx context.Context, bookID uuid.UUID) (RatingSummary, error)
	Update(ctx context.Context, review *Review) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Models is a top-level container that groups all database model types together.
// It is passed around the application so every handler has access to the
// database without importing sql directly. Tests swap in other implementations.
type Models struct {
	Users   UserStore
	Books   BookStore
	Reviews ReviewStore
}

// NewModels constructs a Models value wired up to the given database connection pool.
func NewModels(db *sql.DB) Models {
	return Models{
		Users:   UserModel{DB: db},
		Books:   BookModel{DB: db},
		Reviews: ReviewModel{DB: db},
	}
}

// constraintViolation reports whether err is a PostgreSQL error with the
// given SQLSTATE code, returning the violated constraint name.
func constraintViolation(err error, code string) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == code {
		return pqErr.Constraint, true
	}
	return "", false
}

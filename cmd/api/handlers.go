// cmd/api/handlers.go
// This file contains the HTTP request handlers for the books resource.
// Each handler is a method on *applicationDependencies so it has access
// to the logger and database models.
package main

import (
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/aoideee/bookreviews/internal/data"
	"github.com/aoideee/bookreviews/internal/validator"
)

// createBookInput holds the fields a client must supply when adding a book.
type createBookInput struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	Genre         string `json:"genre"`
	Description   string `json:"description"`
	PublishedYear int    `json:"publishedYear"`
}

// bookDetail is the single-book view: the book, its live rating, and one
// page of its reviews.
type bookDetail struct {
	data.Book
	data.RatingSummary
	Reviews           []*data.ReviewWithAuthor `json:"reviews"`
	ReviewsPagination data.Metadata            `json:"reviewsPagination"`
}

// createBookHandler handles POST /v1/books.
// The authenticated user is recorded as the book's creator.
func (app *applicationDependencies) createBookHandler(w http.ResponseWriter, r *http.Request) {
	var input createBookInput

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := app.contextGetUser(r)

	book := &data.Book{
		Title:         input.Title,
		Author:        input.Author,
		Genre:         input.Genre,
		Description:   input.Description,
		PublishedYear: input.PublishedYear,
		CreatedBy:     user.UserID,
	}
	book.Normalize()

	v := validator.New()
	if data.ValidateBook(v, book, app.now()); !v.Valid() {
		app.failedValidationResponse(w, r, v)
		return
	}

	// Insert() also writes the generated ID and created_at back into book.
	err = app.models.Books.Insert(r.Context(), book)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{"message": "book added successfully", "book": book}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listBooksHandler handles GET /v1/books.
// ?author and ?genre narrow the list; ?page and ?limit pick the page.
func (app *applicationDependencies) listBooksHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	author := app.readString(qs, "author", "")
	genre := app.readString(qs, "genre", "")
	filters := app.readFilters(qs)

	books, metadata, err := app.models.Books.GetAll(r.Context(), author, genre, filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"books": books, "pagination": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showBookHandler handles GET /v1/books/:id.
// The rating aggregate and the requested page of reviews are loaded
// concurrently once the book is known to exist.
func (app *applicationDependencies) showBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.bookNotFoundResponse(w, r)
		return
	}

	book, err := app.models.Books.Get(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.bookNotFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	detail := bookDetail{Book: *book}
	filters := app.readFilters(r.URL.Query())

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		summary, err := app.models.Reviews.GetRatingSummary(ctx, book.ID)
		detail.RatingSummary = summary
		return err
	})
	g.Go(func() error {
		reviews, metadata, err := app.models.Reviews.GetAllForBook(ctx, book.ID, filters)
		detail.Reviews, detail.ReviewsPagination = reviews, metadata
		return err
	})
	if err := g.Wait(); err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"book": detail}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

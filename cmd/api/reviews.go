// cmd/api/reviews.go
// Review handlers. Only a review's author may change or delete it.
package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/aoideee/bookreviews/internal/data"
	"github.com/aoideee/bookreviews/internal/validator"
)

// Ratings decode as float64 so a whole-valued number such as 4.0 is accepted.
type createReviewInput struct {
	Rating  float64 `json:"rating"`
	Comment string  `json:"comment"`
}

// updateReviewInput uses pointers so an omitted field stays unchanged.
type updateReviewInput struct {
	Rating  *float64 `json:"rating"`
	Comment *string  `json:"comment"`
}

// readRating converts a decoded rating to a star count. A value that is not
// a whole number in range is recorded on v; zero is left for the caller's
// "must be provided" check.
func readRating(v *validator.Validator, rating float64) int {
	if rating != 0 && !validator.WholeRating(rating) {
		v.AddError("rating", "must be an integer between 1 and 5")
		return 0
	}
	return int(rating)
}

// createReviewHandler handles POST /v1/books/:id/reviews.
func (app *applicationDependencies) createReviewHandler(w http.ResponseWriter, r *http.Request) {
	bookID, err := app.readIDParam(r)
	if err != nil {
		app.bookNotFoundResponse(w, r)
		return
	}

	var input createReviewInput
	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := app.contextGetUser(r)
	v := validator.New()

	review := &data.Review{
		BookID:  bookID,
		UserID:  user.UserID,
		Rating:  readRating(v, input.Rating),
		Comment: strings.TrimSpace(input.Comment),
	}

	if data.ValidateReview(v, review); !v.Valid() {
		app.failedValidationResponse(w, r, v)
		return
	}

	_, err = app.models.Books.Get(r.Context(), bookID)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.bookNotFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	_, err = app.models.Reviews.GetForUserAndBook(r.Context(), user.UserID, bookID)
	switch {
	case err == nil:
		app.conflictResponse(w, r, "you have already reviewed this book")
		return
	case !errors.Is(err, data.ErrRecordNotFound):
		app.serverErrorResponse(w, r, err)
		return
	}

	// Concurrent submissions can both pass the lookup; the (book_id, user_id)
	// unique constraint lets only one insert through.
	err = app.models.Reviews.Insert(r.Context(), review)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrDuplicateReview):
			app.conflictResponse(w, r, "you have already reviewed this book")
		case errors.Is(err, data.ErrRecordNotFound):
			app.bookNotFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{"message": "review added successfully", "review": review}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateReviewHandler handles PUT /v1/reviews/:id.
// Only the fields present in the body change; updatedAt is refreshed.
func (app *applicationDependencies) updateReviewHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.reviewNotFoundResponse(w, r)
		return
	}

	var input updateReviewInput
	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()

	update := data.ReviewUpdate{Comment: input.Comment}
	if input.Rating != nil {
		rating := readRating(v, *input.Rating)
		update.Rating = &rating
	}

	if data.ValidateReviewUpdate(v, update); !v.Valid() {
		app.failedValidationResponse(w, r, v)
		return
	}

	review, ok := app.loadOwnReview(w, r, id, "you can only update your own reviews")
	if !ok {
		return
	}

	update.Apply(review)

	err = app.models.Reviews.Update(r.Context(), review)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.reviewNotFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "review updated successfully", "review": review}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// deleteReviewHandler handles DELETE /v1/reviews/:id.
func (app *applicationDependencies) deleteReviewHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.reviewNotFoundResponse(w, r)
		return
	}

	if _, ok := app.loadOwnReview(w, r, id, "you can only delete your own reviews"); !ok {
		return
	}

	err = app.models.Reviews.Delete(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.reviewNotFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "review deleted successfully"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// loadOwnReview fetches the review and checks the requester wrote it. On
// failure it has already written the 404/403/500 response and returns false.
func (app *applicationDependencies) loadOwnReview(w http.ResponseWriter, r *http.Request, id uuid.UUID, forbidden string) (*data.Review, bool) {
	review, err := app.models.Reviews.Get(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.reviewNotFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return nil, false
	}

	if review.UserID != app.contextGetUser(r).UserID {
		app.notPermittedResponse(w, r, forbidden)
		return nil, false
	}

	return review, true
}

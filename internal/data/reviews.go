package data

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/aoideee/bookreviews/internal/validator"
)

// Review is one user's star rating and comment on a book. A user holds at
// most one review per book.
type Review struct {
	ID        uuid.UUID `json:"id"`
	BookID    uuid.UUID `json:"bookId"`
	UserID    uuid.UUID `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReviewWithAuthor is a Review annotated with its author's display name.
type ReviewWithAuthor struct {
	Review
	UserName string `json:"userName"`
}

// ReviewUpdate carries the optional fields of a partial review update.
// A nil field is left unchanged.
type ReviewUpdate struct {
	Rating  *int
	Comment *string
}

// Apply copies the provided fields onto review, trimming the comment.
func (u ReviewUpdate) Apply(review *Review) {
	if u.Rating != nil {
		review.Rating = *u.Rating
	}
	if u.Comment != nil {
		review.Comment = strings.TrimSpace(*u.Comment)
	}
}

// ValidateReview checks a new review's rating and (trimmed) comment.
func ValidateReview(v *validator.Validator, review *Review) {
	v.Check(review.Rating != 0, "rating", "must be provided")
	v.Check(validator.ValidRating(review.Rating), "rating", "must be an integer between 1 and 5")
	v.Check(review.Comment != "", "comment", "must be provided")
	v.Check(len(review.Comment) <= 5000, "comment", "must not be more than 5000 bytes long")
}

// ValidateReviewUpdate checks a partial update: at least one field, and any
// provided field must itself be valid.
func ValidateReviewUpdate(v *validator.Validator, update ReviewUpdate) {
	v.Check(update.Rating != nil || update.Comment != nil, "review", "at least rating or comment must be provided")

	if update.Rating != nil {
		v.Check(validator.ValidRating(*update.Rating), "rating", "must be an integer between 1 and 5")
	}
	if update.Comment != nil {
		v.Check(validator.NotBlank(*update.Comment), "comment", "must not be empty")
		v.Check(len(*update.Comment) <= 5000, "comment", "must not be more than 5000 bytes long")
	}
}

// ReviewModel wraps a *sql.DB connection pool and implements ReviewStore.
type ReviewModel struct {
	DB *sql.DB
}

// Insert stores a new review. The UNIQUE (book_id, user_id) constraint
// decides duplicates, so two concurrent submissions cannot both succeed:
// the loser gets ErrDuplicateReview. A review for a missing book or user
// gets ErrRecordNotFound.
func (m ReviewModel) Insert(ctx context.Context, review *Review) error {
	query := `
		INSERT INTO reviews (id, book_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	review.ID = uuid.New()

	args := []any{review.ID, review.BookID, review.UserID, review.Rating, review.Comment}

	err := m.DB.QueryRowContext(ctx, query, args...).Scan(&review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		if constraint, ok := constraintViolation(err, pgUniqueViolation); ok && constraint == reviewsBookUserKey {
			return ErrDuplicateReview
		}
		if _, ok := constraintViolation(err, pgForeignKeyViolation); ok {
			return ErrRecordNotFound
		}
		return errors.Wrap(err, "insert review")
	}

	return nil
}

// Get retrieves a review by id.
func (m ReviewModel) Get(ctx context.Context, id uuid.UUID) (*Review, error) {
	query := `
		SELECT id, book_id, user_id, rating, comment, created_at, updated_at
		FROM reviews
		WHERE id = $1`

	return scanReview(m.DB.QueryRowContext(ctx, query, id))
}

// GetForUserAndBook retrieves the review userID wrote for bookID, if any.
func (m ReviewModel) GetForUserAndBook(ctx context.Context, userID, bookID uuid.UUID) (*Review, error) {
	query := `
		SELECT id, book_id, user_id, rating, comment, created_at, updated_at
		FROM reviews
		WHERE user_id = $1 AND book_id = $2`

	return scanReview(m.DB.QueryRowContext(ctx, query, userID, bookID))
}

// GetAllForBook lists a book's reviews newest first, each with its author's
// name, together with pagination metadata over all of the book's reviews.
func (m ReviewModel) GetAllForBook(ctx context.Context, bookID uuid.UUID, filters Filters) ([]*ReviewWithAuthor, Metadata, error) {
	pageQuery := `
		SELECT r.id, r.book_id, r.user_id, r.rating, r.comment, r.created_at, r.updated_at, u.name
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.book_id = $1
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $2 OFFSET $3`
	countQuery := `SELECT COUNT(*) FROM reviews WHERE book_id = $1`

	var (
		reviews      []*ReviewWithAuthor
		totalRecords int
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.DB.QueryRowContext(gctx, countQuery, bookID).Scan(&totalRecords)
	})

	g.Go(func() error {
		rows, err := m.DB.QueryContext(gctx, pageQuery, bookID, filters.limit(), filters.offset())
		if err != nil {
			return err
		}
		defer rows.Close()

		reviews = []*ReviewWithAuthor{}
		for rows.Next() {
			var review ReviewWithAuthor
			err := rows.Scan(
				&review.ID,
				&review.BookID,
				&review.UserID,
				&review.Rating,
				&review.Comment,
				&review.CreatedAt,
				&review.UpdatedAt,
				&review.UserName,
			)
			if err != nil {
				return err
			}
			reviews = append(reviews, &review)
		}

		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, Metadata{}, errors.Wrapf(err, "list reviews for book %s", bookID)
	}

	return reviews, CalculateMetadata(totalRecords, filters), nil
}

// GetRatingSummary recomputes a book's average rating and review count from
// its current reviews.
func (m ReviewModel) GetRatingSummary(ctx context.Context, bookID uuid.UUID) (RatingSummary, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(rating), 0)
		FROM reviews
		WHERE book_id = $1`

	var total, sum int
	err := m.DB.QueryRowContext(ctx, query, bookID).Scan(&total, &sum)
	if err != nil {
		return RatingSummary{}, errors.Wrapf(err, "rating summary for book %s", bookID)
	}

	return SummarizeRatings(sum, total), nil
}

// Update saves review's rating and comment. updated_at is refreshed by the
// database and scanned back; created_at is untouched.
// Returns ErrRecordNotFound if the review no longer exists.
func (m ReviewModel) Update(ctx context.Context, review *Review) error {
	query := `
		UPDATE reviews
		SET rating = $1, comment = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
		RETURNING updated_at`

	err := m.DB.QueryRowContext(ctx, query, review.Rating, review.Comment, review.ID).Scan(&review.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrRecordNotFound
		default:
			return errors.Wrap(err, "update review")
		}
	}

	return nil
}

// Delete removes the review with the given id.
// Returns ErrRecordNotFound if no matching record exists.
func (m ReviewModel) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM reviews WHERE id = $1`

	// Exec returns a Result that tells us how many rows were affected.
	result, err := m.DB.ExecContext(ctx, query, id)
	if err != nil {
		return errors.Wrap(err, "delete review")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete review")
	}

	if rowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func scanReview(row *sql.Row) (*Review, error) {
	var review Review
	err := row.Scan(
		&review.ID,
		&review.BookID,
		&review.UserID,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, errors.Wrap(err, "scan review")
		}
	}
	return &review, nil
}

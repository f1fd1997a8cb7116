package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/aoideee/bookreviews/internal/validator"
)

// User represents a registered account. Password holds the bcrypt hash and
// is never serialized.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidateEmail checks that email is present and shaped like local@domain.tld.
func ValidateEmail(v *validator.Validator, email string) {
	v.Check(email != "", "email", "must be provided")
	v.Check(validator.Matches(email, validator.EmailRX), "email", "must be a valid email address")
}

// ValidatePasswordPlaintext checks the password a user signs up with.
func ValidatePasswordPlaintext(v *validator.Validator, password string) {
	v.Check(password != "", "password", "must be provided")
	v.Check(len(password) >= validator.MinPasswordLength, "password", "must be at least 6 characters long")
	v.Check(len(password) <= 72, "password", "must not be more than 72 bytes long")
}

// ValidateUser checks the signup fields before a user is hashed and stored.
func ValidateUser(v *validator.Validator, email, password, name string) {
	ValidateEmail(v, email)
	ValidatePasswordPlaintext(v, password)
	v.Check(validator.NotBlank(name), "name", "must be provided")
	v.Check(len(name) <= 200, "name", "must not be more than 200 bytes long")
}

// UserModel wraps a *sql.DB connection pool and implements UserStore.
type UserModel struct {
	DB *sql.DB
}

// Insert stores a new user. The id is assigned here; created_at comes back
// from the database. A second account with the same email fails with
// ErrDuplicateEmail.
func (m UserModel) Insert(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, name)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	user.ID = uuid.New()

	err := m.DB.QueryRowContext(ctx, query, user.ID, user.Email, user.Password, user.Name).Scan(&user.CreatedAt)
	if err != nil {
		if constraint, ok := constraintViolation(err, pgUniqueViolation); ok && constraint == usersEmailKey {
			return ErrDuplicateEmail
		}
		return errors.Wrap(err, "insert user")
	}

	return nil
}

// Get retrieves a user by id.
func (m UserModel) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, email, password_hash, name, created_at
		FROM users
		WHERE id = $1`

	return m.scanOne(m.DB.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by exact email, as stored.
func (m UserModel) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, name, created_at
		FROM users
		WHERE email = $1`

	return m.scanOne(m.DB.QueryRowContext(ctx, query, email))
}

func (m UserModel) scanOne(row *sql.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Password, &user.Name, &user.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, errors.Wrap(err, "scan user")
		}
	}
	return &user, nil
}

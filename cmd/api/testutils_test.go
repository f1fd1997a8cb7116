package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aoideee/bookreviews/internal/auth"
	"github.com/aoideee/bookreviews/internal/data"
)

// testNow pins the clock used for publication-year checks.
var testNow = time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory stand-in for PostgreSQL. Each write advances a
// logical clock so newest-first ordering is deterministic.
type memStore struct {
	mu      sync.Mutex
	clock   time.Time
	users   []*data.User
	books   []*data.Book
	reviews []*data.Review
}

func newMemStore() *memStore {
	return &memStore{clock: testNow}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) models() data.Models {
	return data.Models{
		Users:   memUsers{s},
		Books:   memBooks{s},
		Reviews: memReviews{s},
	}
}

type memUsers struct{ s *memStore }

func (m memUsers) Insert(_ context.Context, user *data.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, u := range m.s.users {
		if u.Email == user.Email {
			return data.ErrDuplicateEmail
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = m.s.tick()
	stored := *user
	m.s.users = append(m.s.users, &stored)
	return nil
}

func (m memUsers) Get(_ context.Context, id uuid.UUID) (*data.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, u := range m.s.users {
		if u.ID == id {
			found := *u
			return &found, nil
		}
	}
	return nil, data.ErrRecordNotFound
}

func (m memUsers) GetByEmail(_ context.Context, email string) (*data.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, u := range m.s.users {
		if u.Email == email {
			found := *u
			return &found, nil
		}
	}
	return nil, data.ErrRecordNotFound
}

type memBooks struct{ s *memStore }

func (m memBooks) Insert(_ context.Context, book *data.Book) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	book.ID = uuid.New()
	book.CreatedAt = m.s.tick()
	stored := *book
	m.s.books = append(m.s.books, &stored)
	return nil
}

func (m memBooks) Get(_ context.Context, id uuid.UUID) (*data.Book, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, b := range m.s.books {
		if b.ID == id {
			found := *b
			return &found, nil
		}
	}
	return nil, data.ErrRecordNotFound
}

func (m memBooks) GetAll(_ context.Context, author, genre string, filters data.Filters) ([]*data.BookWithRating, data.Metadata, error) {
	return m.list(filters, func(b *data.Book) bool {
		return containsFold(b.Author, author) && containsFold(b.Genre, genre)
	})
}

func (m memBooks) Search(_ context.Context, query string, filters data.Filters) ([]*data.BookWithRating, data.Metadata, error) {
	return m.list(filters, func(b *data.Book) bool {
		return containsFold(b.Title, query) || containsFold(b.Author, query)
	})
}

func (m memBooks) list(filters data.Filters, match func(*data.Book) bool) ([]*data.BookWithRating, data.Metadata, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var matched []*data.BookWithRating
	for _, b := range m.s.books {
		if match(b) {
			matched = append(matched, &data.BookWithRating{Book: *b, RatingSummary: m.s.summary(b.ID)})
		}
	}
	slices.SortFunc(matched, func(a, b *data.BookWithRating) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return page(matched, filters), data.CalculateMetadata(len(matched), filters), nil
}

type memReviews struct{ s *memStore }

func (m memReviews) Insert(_ context.Context, review *data.Review) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, r := range m.s.reviews {
		if r.BookID == review.BookID && r.UserID == review.UserID {
			return data.ErrDuplicateReview
		}
	}
	review.ID = uuid.New()
	review.CreatedAt = m.s.tick()
	review.UpdatedAt = review.CreatedAt
	stored := *review
	m.s.reviews = append(m.s.reviews, &stored)
	return nil
}

func (m memReviews) Get(_ context.Context, id uuid.UUID) (*data.Review, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, r := range m.s.reviews {
		if r.ID == id {
			found := *r
			return &found, nil
		}
	}
	return nil, data.ErrRecordNotFound
}

func (m memReviews) GetForUserAndBook(_ context.Context, userID, bookID uuid.UUID) (*data.Review, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, r := range m.s.reviews {
		if r.UserID == userID && r.BookID == bookID {
			found := *r
			return &found, nil
		}
	}
	return nil, data.ErrRecordNotFound
}

func (m memReviews) GetAllForBook(_ context.Context, bookID uuid.UUID, filters data.Filters) ([]*data.ReviewWithAuthor, data.Metadata, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var matched []*data.ReviewWithAuthor
	for _, r := range m.s.reviews {
		if r.BookID != bookID {
			continue
		}
		withAuthor := &data.ReviewWithAuthor{Review: *r}
		for _, u := range m.s.users {
			if u.ID == r.UserID {
				withAuthor.UserName = u.Name
			}
		}
		matched = append(matched, withAuthor)
	}
	slices.SortFunc(matched, func(a, b *data.ReviewWithAuthor) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return page(matched, filters), data.CalculateMetadata(len(matched), filters), nil
}

func (m memReviews) GetRatingSummary(_ context.Context, bookID uuid.UUID) (data.RatingSummary, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.summary(bookID), nil
}

func (m memReviews) Update(_ context.Context, review *data.Review) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, r := range m.s.reviews {
		if r.ID == review.ID {
			r.Rating = review.Rating
			r.Comment = review.Comment
			r.UpdatedAt = m.s.tick()
			review.UpdatedAt = r.UpdatedAt
			return nil
		}
	}
	return data.ErrRecordNotFound
}

func (m memReviews) Delete(_ context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for i, r := range m.s.reviews {
		if r.ID == id {
			m.s.reviews = slices.Delete(m.s.reviews, i, i+1)
			return nil
		}
	}
	return data.ErrRecordNotFound
}

// summary must be called with mu held.
func (s *memStore) summary(bookID uuid.UUID) data.RatingSummary {
	var sum, count int
	for _, r := range s.reviews {
		if r.BookID == bookID {
			sum += r.Rating
			count++
		}
	}
	return data.SummarizeRatings(sum, count)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func page[T any](items []T, filters data.Filters) []T {
	start := (filters.Page - 1) * filters.Limit
	if start >= len(items) {
		return []T{}
	}
	end := min(start+filters.Limit, len(items))
	return items[start:end]
}

// newTestApplication returns an application backed by a fresh in-memory
// store, with request logs discarded and rate limiting off.
func newTestApplication(t *testing.T) *applicationDependencies {
	t.Helper()
	return newTestApplicationWithSecret(t, "test-secret")
}

func newTestApplicationWithSecret(t *testing.T, secret string) *applicationDependencies {
	t.Helper()

	app := &applicationDependencies{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		models: newMemStore().models(),
		tokens: auth.NewTokenIssuer(secret),
		now:    func() time.Time { return testNow },
	}
	app.config.environment = "testing"
	app.config.cors.trustedOrigins = []string{"http://localhost:3000"}
	return app
}

// response is a decoded JSON reply.
type response struct {
	status int
	header http.Header
	body   map[string]any
}

// do sends one request through the full middleware chain. body is
// marshalled to JSON unless it is already a string.
func do(t *testing.T, h http.Handler, method, target, token string, body any) response {
	t.Helper()

	authorization := ""
	if token != "" {
		authorization = "Bearer " + token
	}
	return doWithHeader(t, h, method, target, authorization, body)
}

// doWithHeader is do with a raw Authorization header value.
func doWithHeader(t *testing.T, h http.Handler, method, target, authorization string, body any) response {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		js, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(js)
	}

	req := httptest.NewRequest(method, target, reader)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	res := response{status: rr.Code, header: rr.Header()}
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &res.body); err != nil {
			t.Fatalf("%s %s: decoding body %q: %v", method, target, rr.Body.String(), err)
		}
	}
	return res
}

// object walks nested JSON objects by key.
func object(t *testing.T, m map[string]any, keys ...string) map[string]any {
	t.Helper()
	for _, k := range keys {
		next, ok := m[k].(map[string]any)
		if !ok {
			t.Fatalf("key %q is %T, not an object", k, m[k])
		}
		m = next
	}
	return m
}

func list(t *testing.T, m map[string]any, key string) []any {
	t.Helper()
	items, ok := m[key].([]any)
	if !ok {
		t.Fatalf("key %q is %T, not an array", key, m[key])
	}
	return items
}

// signup registers a user and returns its token and id.
func signup(t *testing.T, h http.Handler, email, name string) (token, id string) {
	t.Helper()
	res := do(t, h, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"email":    email,
		"password": "secret123",
		"name":     name,
	})
	if res.status != http.StatusCreated {
		t.Fatalf("signup %s: status %d, body %v", email, res.status, res.body)
	}
	return res.body["token"].(string), object(t, res.body, "user")["id"].(string)
}

// addBook creates a book and returns its id.
func addBook(t *testing.T, h http.Handler, token, title, author, genre string, year int) string {
	t.Helper()
	res := do(t, h, http.MethodPost, "/v1/books", token, map[string]any{
		"title":         title,
		"author":        author,
		"genre":         genre,
		"description":   "A book.",
		"publishedYear": year,
	})
	if res.status != http.StatusCreated {
		t.Fatalf("add book %s: status %d, body %v", title, res.status, res.body)
	}
	return object(t, res.body, "book")["id"].(string)
}

// addReview posts a review and returns its id.
func addReview(t *testing.T, h http.Handler, token, bookID string, rating int) string {
	t.Helper()
	res := do(t, h, http.MethodPost, "/v1/books/"+bookID+"/reviews", token, map[string]any{
		"rating":  rating,
		"comment": "Worth reading.",
	})
	if res.status != http.StatusCreated {
		t.Fatalf("add review: status %d, body %v", res.status, res.body)
	}
	return object(t, res.body, "review")["id"].(string)
}

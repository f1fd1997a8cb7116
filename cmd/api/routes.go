// cmd/api/routes.go
package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// routes registers all HTTP endpoints and returns the configured router
// wrapped in the middleware chain.
//
// Middleware chain (outermost → innermost):
//
//	logRequest → recoverPanic → secureHeaders → enableCORS → rateLimit → authenticate → router
//
// Endpoints ([auth] routes reject anonymous requests with 401):
//
//	GET    /v1/healthcheck          – service status
//	POST   /v1/auth/signup          – register and receive a token
//	POST   /v1/auth/login           – exchange credentials for a token
//	POST   /v1/books                – add a book [auth]
//	GET    /v1/books                – list books (?page, ?limit, ?author, ?genre)
//	GET    /v1/books/:id            – one book with rating and paginated reviews
//	POST   /v1/books/:id/reviews    – review a book [auth]
//	PUT    /v1/reviews/:id          – edit own review [auth]
//	DELETE /v1/reviews/:id          – delete own review [auth]
//	GET    /v1/search               – search titles and authors (?q, ?page, ?limit)
func (app *applicationDependencies) routes() http.Handler {
	router := httprouter.New()

	// Override the default httprouter error handlers to return JSON responses.
	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)

	router.HandlerFunc(http.MethodPost, "/v1/auth/signup", app.signupHandler)
	router.HandlerFunc(http.MethodPost, "/v1/auth/login", app.loginHandler)

	router.HandlerFunc(http.MethodPost, "/v1/books", app.requireAuthenticatedUser(app.createBookHandler))
	router.HandlerFunc(http.MethodGet, "/v1/books", app.listBooksHandler)
	router.HandlerFunc(http.MethodGet, "/v1/books/:id", app.showBookHandler)
	router.HandlerFunc(http.MethodPost, "/v1/books/:id/reviews", app.requireAuthenticatedUser(app.createReviewHandler))

	router.HandlerFunc(http.MethodPut, "/v1/reviews/:id", app.requireAuthenticatedUser(app.updateReviewHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/reviews/:id", app.requireAuthenticatedUser(app.deleteReviewHandler))

	router.HandlerFunc(http.MethodGet, "/v1/search", app.searchBooksHandler)

	return app.wrap(router)
}

// wrap applies the middleware chain around next. logRequest sits outside
// recoverPanic so a request that panicked is still logged with its 500.
func (app *applicationDependencies) wrap(next http.Handler) http.Handler {
	return app.logRequest(app.recoverPanic(app.secureHeaders(app.enableCORS(app.rateLimit(app.authenticate(next))))))
}

package main

import (
	"errors"
	"net/http"
)

// searchBooksHandler handles GET /v1/search?q=...
// q is matched case-insensitively against titles and authors.
func (app *applicationDependencies) searchBooksHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	query := app.readString(qs, "q", "")
	if query == "" {
		app.badRequestResponse(w, r, errors.New("search query (q) is required"))
		return
	}

	filters := app.readFilters(qs)

	books, metadata, err := app.models.Books.Search(r.Context(), query, filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"query": query, "books": books, "pagination": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

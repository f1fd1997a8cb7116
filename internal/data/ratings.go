package data

import "math"

// RatingSummary is the derived star rating of a book. It is never stored;
// every read recomputes it from the book's current reviews.
type RatingSummary struct {
	AverageRating float64 `json:"averageRating"`
	TotalReviews  int     `json:"totalReviews"`
}

// SummarizeRatings rounds the mean rating to one decimal place, half up.
// A book with no reviews averages 0.
func SummarizeRatings(sum, count int) RatingSummary {
	if count <= 0 {
		return RatingSummary{}
	}
	return RatingSummary{
		AverageRating: math.Round(float64(sum)*10/float64(count)) / 10,
		TotalReviews:  count,
	}
}

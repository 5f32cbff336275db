package types

import "context"

// Listing is one ranked entry returned by a listing search.
type Listing struct {
	Name   string
	Rating float64
}

// ImageSource returns the URL of a random image.
type ImageSource interface {
	RandomImageURL(ctx context.Context) (string, error)
}

// ListingSource returns one page of ranked listings.
type ListingSource interface {
	Search(ctx context.Context, offset int, limit int) ([]Listing, error)
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"zepler/pkg/config"
	"zepler/pkg/provider/dogceo"
	providertypes "zepler/pkg/provider/types"
	"zepler/pkg/provider/yelp"
)

const (
	// PageSize is the largest page the listing search hands out.
	PageSize = 50
	// PageCount is how many consecutive pages make one candidate pool.
	PageCount = 2
)

// Sources bundles the external content services commands depend on.
type Sources struct {
	Images   providertypes.ImageSource
	Listings providertypes.ListingSource
}

// New builds the production image and listing clients from configuration.
func New(cfg *config.Config) (Sources, error) {
	if cfg == nil {
		return Sources{}, errors.New("config is required")
	}

	slog.Default().With("component", "provider.factory").Debug("Resolving content providers",
		"images", cfg.Services.DogCEO.BaseURL,
		"listings", cfg.Services.Yelp.BaseURL,
		"listings_token_set", cfg.Services.Yelp.Token != "",
	)

	images, err := dogceo.New(cfg.Services.DogCEO, nil)
	if err != nil {
		return Sources{}, fmt.Errorf("initialize image provider: %w", err)
	}

	listings, err := yelp.New(cfg.Services.Yelp, nil)
	if err != nil {
		return Sources{}, fmt.Errorf("initialize listing provider: %w", err)
	}

	return Sources{Images: images, Listings: listings}, nil
}

// FetchPages requests PageCount pages of PageSize concurrently and merges them
// in page order. Any failed page fails the whole fetch.
func FetchPages(ctx context.Context, src providertypes.ListingSource) ([]providertypes.Listing, error) {
	if src == nil {
		return nil, errors.New("listing source is required")
	}

	pages := make([][]providertypes.Listing, PageCount)
	group, groupCtx := errgroup.WithContext(ctx)
	for page := range PageCount {
		group.Go(func() error {
			listings, err := src.Search(groupCtx, page*PageSize, PageSize)
			if err != nil {
				return fmt.Errorf("fetch page %d: %w", page+1, err)
			}
			pages[page] = listings
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	var merged []providertypes.Listing
	for _, listings := range pages {
		merged = append(merged, listings...)
	}

	return merged, nil
}

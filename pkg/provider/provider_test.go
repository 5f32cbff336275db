package provider

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"zepler/pkg/config"
	"zepler/pkg/provider/dogceo"
	providertypes "zepler/pkg/provider/types"
	"zepler/pkg/provider/yelp"
)

type pagedSource struct {
	mu      sync.Mutex
	offsets []int
	limits  []int
	failAt  int
}

func (s *pagedSource) Search(_ context.Context, offset int, limit int) ([]providertypes.Listing, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	s.limits = append(s.limits, limit)
	s.mu.Unlock()

	if s.failAt >= 0 && offset == s.failAt {
		return nil, providertypes.NewError("test", providertypes.ErrorBadStatus, "status 500")
	}

	return []providertypes.Listing{{Name: "page-" + string(rune('a'+offset/PageSize)), Rating: 4}}, nil
}

func TestFetchPagesRequestsTwoPagesAndMergesInOrder(t *testing.T) {
	src := &pagedSource{failAt: -1}

	listings, err := FetchPages(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, []providertypes.Listing{{Name: "page-a", Rating: 4}, {Name: "page-b", Rating: 4}}, listings)

	sort.Ints(src.offsets)
	require.Equal(t, []int{0, 50}, src.offsets)
	require.Equal(t, []int{PageSize, PageSize}, src.limits)
}

func TestFetchPagesFailsWhenAnyPageFails(t *testing.T) {
	src := &pagedSource{failAt: PageSize}

	_, err := FetchPages(context.Background(), src)
	require.Error(t, err)

	var fetchErr *providertypes.Error
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, providertypes.ErrorBadStatus, fetchErr.Category)
}

func TestFetchPagesRequiresSource(t *testing.T) {
	_, err := FetchPages(context.Background(), nil)
	require.Error(t, err)
}

func TestNewBuildsProductionClients(t *testing.T) {
	sources, err := New(config.Default())
	require.NoError(t, err)

	if _, ok := sources.Images.(*dogceo.Client); !ok {
		t.Fatalf("expected *dogceo.Client, got %T", sources.Images)
	}
	if _, ok := sources.Listings.(*yelp.Client); !ok {
		t.Fatalf("expected *yelp.Client, got %T", sources.Listings)
	}
}

func TestNewRejectsMissingConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Services.DogCEO.BaseURL = ""

	_, err := New(cfg)
	require.Error(t, err)

	_, err = New(nil)
	require.Error(t, err)
}

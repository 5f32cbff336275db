package command

import (
	"context"
	"errors"
	"sync"

	"zepler/pkg/logger"
	providertypes "zepler/pkg/provider/types"
)

var discard = logger.Discard()

type fakeImages struct {
	mu    sync.Mutex
	url   string
	err   error
	calls int
}

func (f *fakeImages) RandomImageURL(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.url, f.err
}

func (f *fakeImages) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeListings struct {
	mu      sync.Mutex
	pages   map[int][]providertypes.Listing
	err     error
	offsets []int
}

func (f *fakeListings) Search(_ context.Context, offset int, _ int) ([]providertypes.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, offset)
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[offset], nil
}

func (f *fakeListings) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.offsets)
}

var errServiceDown = errors.New("service down")

package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"radarsync/internal/models"
)

// DefaultTimeout bounds a single download. Feeds can hold tens of thousands
// of rows, so it is generous.
const DefaultTimeout = 60 * time.Second

// maxBody caps a downloaded publication.
const maxBody = 256 << 20

// Location says where a publication lives. Path wins over URL when both are
// set.
type Location struct {
	URL  string
	Path string
}

// Name is the file name used for the cached copy.
func (l Location) Name() string {
	if l.Path != "" {
		return path.Base(l.Path)
	}
	if u, err := url.Parse(l.URL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return ""
}

func (l Location) capabilities() Capability {
	var c Capability
	if l.Path != "" {
		c |= CachedCopy
	}
	if l.URL != "" {
		c |= Network
	}
	return c
}

// FeedCache keeps the last good copy of each downloaded publication.
type FeedCache interface {
	PutFeed(ctx context.Context, src models.Source, name string, data []byte) error
	GetFeed(ctx context.Context, src models.Source, name string) ([]byte, error)
}

// Fetcher obtains publication bytes from disk, the network, or the cached
// copy when the network fails.
type Fetcher struct {
	client *http.Client
	cache  FeedCache
}

// NewFetcher builds a Fetcher. A nil client gets DefaultTimeout; a nil cache
// disables cached copies.
func NewFetcher(client *http.Client, cache FeedCache) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Fetcher{client: client, cache: cache}
}

// Fetch returns the bytes of the publication at loc.
func (f *Fetcher) Fetch(ctx context.Context, src models.Source, loc Location) ([]byte, error) {
	if loc.Path != "" {
		data, err := os.ReadFile(loc.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFetch, src, err)
		}
		return data, nil
	}
	if loc.URL == "" {
		return nil, fmt.Errorf("%w: %s: no location configured", ErrFetch, src)
	}

	data, err := f.download(ctx, loc.URL)
	if err == nil {
		if f.cache != nil {
			if cerr := f.cache.PutFeed(ctx, src, loc.Name(), data); cerr != nil {
				logger.Warn("could not cache feed copy", "source", src, "error", cerr)
			}
		}
		return data, nil
	}
	if f.cache == nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, src, err)
	}

	logger.Warn("download failed, trying cached copy", "source", src, "url", loc.URL, "error", err)
	cached, cerr := f.cache.GetFeed(ctx, src, loc.Name())
	if cerr != nil {
		return nil, fmt.Errorf("%w: %s: %v (cached copy: %v)", ErrFetch, src, err, cerr)
	}
	return cached, nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}

// fetchOrEmpty fetches and logs a failure, returning nil data so the
// adapter yields nothing.
func fetchOrEmpty(ctx context.Context, f *Fetcher, src models.Source, loc Location) []byte {
	data, err := f.Fetch(ctx, src, loc)
	if err != nil {
		logger.Error("source fetch failed", "source", src, "error", err)
		return nil
	}
	logger.Info("fetched source", "source", src, "bytes", len(data))
	return data
}

// capabilitiesOf adds CachedCopy when a feed cache is available.
func (f *Fetcher) capabilitiesOf(loc Location) Capability {
	c := loc.capabilities()
	if f.cache != nil && c.Has(Network) {
		c |= CachedCopy
	}
	return c
}

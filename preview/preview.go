// Package preview resolves Open Graph metadata for URLs found in message
// text. Everything here is best effort: any failure degrades to a nil
// result and the caller renders the bare link.
package preview

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Metadata is the ephemeral preview record. Title is always set on a
// non-nil result.
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	URL         string `json:"url"`
}

const maxBodyBytes = 512 * 1024

// Defaults for the resolver knobs; overridable through configuration.
const (
	DefaultTimeout    = 5 * time.Second
	DefaultRetryLimit = 10 * time.Second
	DefaultCacheTTL   = time.Hour
)

type cacheEntry struct {
	meta    *Metadata
	fetched time.Time
}

// Resolver fetches pages and extracts og:title / og:description / og:image
// with a <title> fallback. Results, including misses, are cached by URL for
// the TTL so repeated renders of the same link cost one fetch.
type Resolver struct {
	client     *http.Client
	retryLimit time.Duration
	ttl        time.Duration
	log        *zap.SugaredLogger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func NewResolver(timeout, retryLimit, ttl time.Duration, log *zap.SugaredLogger) *Resolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{
		client:     &http.Client{Timeout: timeout},
		retryLimit: retryLimit,
		ttl:        ttl,
		log:        log,
		cache:      make(map[string]cacheEntry),
	}
}

// Resolve returns the page metadata or nil when the page is unreachable,
// not HTML, or carries no usable title. It never returns an error: preview
// failure is not a user-facing condition.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) *Metadata {
	r.mu.Lock()
	if entry, ok := r.cache[rawURL]; ok && time.Since(entry.fetched) < r.ttl {
		r.mu.Unlock()
		return entry.meta
	}
	r.mu.Unlock()

	meta := r.fetch(ctx, rawURL)

	r.mu.Lock()
	r.cache[rawURL] = cacheEntry{meta: meta, fetched: time.Now()}
	r.mu.Unlock()
	return meta
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) *Metadata {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", "classboard-preview/1.0")

		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			return errStatus
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(errStatus)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return err
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = r.retryLimit
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		r.log.Debugw("preview fetch failed", "url", rawURL, "err", err)
		return nil
	}

	meta := parseMetadata(body)
	if meta == nil || meta.Title == "" {
		return nil
	}
	meta.URL = rawURL
	return meta
}

var errStatus = &statusError{}

type statusError struct{}

func (*statusError) Error() string { return "unexpected status" }

// parseMetadata walks the document collecting Open Graph tags, falling back
// to the first <title> element. The tokenizer-based parser tolerates the
// broken markup real pages serve.
func parseMetadata(body []byte) *Metadata {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}

	meta := &Metadata{}
	var title string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				var prop, content string
				for _, a := range n.Attr {
					switch a.Key {
					case "property", "name":
						prop = a.Val
					case "content":
						content = a.Val
					}
				}
				switch prop {
				case "og:title":
					meta.Title = content
				case "og:description":
					meta.Description = content
				case "og:image":
					meta.Image = content
				}
			case "title":
				if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if meta.Title == "" {
		meta.Title = title
	}
	if meta.Title == "" {
		return nil
	}
	return meta
}

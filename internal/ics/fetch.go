package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"

	appLog "timereport/internal/log"
)

// Feed is one ICS subscription.
type Feed struct {
	ID  string
	URL string
}

// fetched is the payload of one feed, fresh or from the disk cache.
type fetched struct {
	Feed      Feed
	Body      []byte
	FromCache bool
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads feeds with conditional requests and keeps the last good
// payload of each feed on disk.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

func NewFetcher(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/ics-cache"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cacheDir: cacheDir}
}

// fetchAll fetches feeds in order. Feeds that fail are left out of the
// result and reported in the aggregated error.
func (f *Fetcher) fetchAll(ctx context.Context, feeds []Feed) ([]fetched, error) {
	out := make([]fetched, 0, len(feeds))
	var errs *multierror.Error
	for _, feed := range feeds {
		res, err := f.fetch(ctx, feed)
		if err != nil {
			appLog.Error("ics: fetch failed", err, "id", feed.ID, "url", redactURL(feed.URL))
			errs = multierror.Append(errs, fmt.Errorf("feed %s: %w", feed.ID, err))
			continue
		}
		out = append(out, res)
	}
	return out, errs.ErrorOrNil()
}

func (f *Fetcher) fetch(ctx context.Context, feed Feed) (fetched, error) {
	if feed.URL == "" {
		return fetched{}, errors.New("feed URL is empty")
	}
	dir := f.cacheDirFor(feed.URL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fetched{}, err
	}
	meta, _ := loadMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return fetched{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	fromCache := func(reason error) (fetched, error) {
		if len(cached) == 0 {
			return fetched{}, reason
		}
		appLog.Error("ics: using cached feed", reason, "id", feed.ID, "url", redactURL(feed.URL))
		return fetched{Feed: feed, Body: cached, FromCache: true}, nil
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fromCache(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fromCache(err)
		}
		meta = cacheMeta{
			URL:          feed.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(dir, meta, body); err != nil {
			appLog.Error("ics: cache save failed", err, "id", feed.ID)
		}
		appLog.Debug("ics: fetched", "id", feed.ID, "bytes", len(body))
		return fetched{Feed: feed, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return fetched{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Debug("ics: not modified", "id", feed.ID)
		return fetched{Feed: feed, Body: cached, FromCache: true}, nil

	default:
		return fromCache(errors.New(resp.Status))
	}
}

// cacheDirFor keys the cache by the first 16 hex chars of the URL hash.
func (f *Fetcher) cacheDirFor(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

// saveCache writes the body before the metadata so the metadata never
// describes a missing body.
func saveCache(dir string, meta cacheMeta, body []byte) error {
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only the scheme and host of a feed URL, which often
// carries a private token.
func redactURL(u string) string {
	const suffix = "/...(redacted)"
	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "ics://...(redacted)"
	}
	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + suffix
}

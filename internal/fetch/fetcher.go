// Package fetch drives paginated image acquisition: for each subject it
// walks every search result page, downloads candidates, and streams one
// provenance row per accepted file to the manifest.
package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sorenlabs/archtagger/internal/manifest"
	"github.com/sorenlabs/archtagger/internal/search"
	"golang.org/x/time/rate"
)

type Options struct {
	// BaseDir is the root under which per-subject image folders are created.
	BaseDir string

	// MaxPages caps pages per subject. 0 means all advertised pages.
	MaxPages int

	// ItemDelay and PageDelay pace requests to stay under provider rate
	// limits. Policy knobs, not correctness requirements.
	ItemDelay time.Duration
	PageDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.ItemDelay <= 0 {
		o.ItemDelay = time.Second
	}
	if o.PageDelay <= 0 {
		o.PageDelay = 2 * time.Second
	}
	return o
}

// Stats summarizes one subject's fetch session.
type Stats struct {
	Accepted int
	Skipped  int
	Pages    int
}

type Fetcher struct {
	search   *search.Client
	dl       *downloader
	appender *manifest.Appender
	opts     Options

	itemPace *rate.Limiter
	pagePace *rate.Limiter
}

func New(client *search.Client, appender *manifest.Appender, opts Options) *Fetcher {
	opts = opts.withDefaults()
	return &Fetcher{
		search:   client,
		dl:       newDownloader(),
		appender: appender,
		opts:     opts,
		itemPace: rate.NewLimiter(rate.Every(opts.ItemDelay), 1),
		pagePace: rate.NewLimiter(rate.Every(opts.PageDelay), 1),
	}
}

// FetchAll runs one subject's session: SEARCH_PAGE and DOWNLOAD_ITEMS cycles
// until the response stops advertising a next page. A search failure after
// retries ends the subject early with partial results retained; per-item
// failures only skip that item. Each accepted download is appended to the
// manifest immediately.
func (f *Fetcher) FetchAll(ctx context.Context, subject string) (Stats, error) {
	var stats Stats

	dir, err := subjectDir(f.opts.BaseDir, subject)
	if err != nil {
		return stats, err
	}

	start := 1
	for start > 0 {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		items, nextStart, err := f.search.Search(ctx, subject, start)
		if err != nil {
			log.Warn().Str("subject", subject).Err(err).Msg("search page failed, ending subject")
			return stats, nil
		}
		if len(items) == 0 {
			break
		}
		stats.Pages++

		for _, item := range items {
			if err := f.itemPace.Wait(ctx); err != nil {
				return stats, err
			}
			local := f.dl.fetchOnce(ctx, item.URL, dir)
			if local == "" {
				stats.Skipped++
				continue
			}
			rec := manifest.DownloadRecord{
				Architect: subject,
				ImageURL:  item.URL,
				Width:     item.Width,
				Height:    item.Height,
				LocalPath: local,
			}
			if err := f.appender.Append(rec); err != nil {
				return stats, fmt.Errorf("append manifest row: %w", err)
			}
			stats.Accepted++
			log.Info().
				Str("subject", subject).
				Str("file", filepath.Base(local)).
				Int("width", item.Width).
				Int("height", item.Height).
				Msg("saved")
		}

		if f.opts.MaxPages > 0 && stats.Pages >= f.opts.MaxPages {
			break
		}
		start = nextStart
		if start > 0 {
			if err := f.pagePace.Wait(ctx); err != nil {
				return stats, err
			}
		}
	}
	return stats, nil
}

// subjectDir creates and returns the subject's image folder,
// "Frank Lloyd Wright" -> <base>/Frank_Lloyd_Wright.
func subjectDir(baseDir, subject string) (string, error) {
	dir := filepath.Join(baseDir, strings.ReplaceAll(subject, " ", "_"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create subject dir: %w", err)
	}
	return dir, nil
}

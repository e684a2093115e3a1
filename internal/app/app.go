// Package app wires the acquisition and annotation phases end to end.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sorenlabs/archtagger/internal/config"
	"github.com/sorenlabs/archtagger/internal/fetch"
	"github.com/sorenlabs/archtagger/internal/manifest"
	"github.com/sorenlabs/archtagger/internal/search"
	"github.com/sorenlabs/archtagger/internal/tagger"
	"github.com/sorenlabs/archtagger/internal/taxonomy"
	"github.com/sorenlabs/archtagger/pkg/pipeline/retry"
)

type FetchConfig struct {
	OutDir       string
	ManifestPath string
	Subjects     []string
	MaxPages     int
	OrTerms      string
	CacheTTL     time.Duration
}

// RunFetch runs one acquisition session per subject, streaming provenance
// rows into the manifest as downloads land.
func RunFetch(ctx context.Context, creds config.SearchCredentials, cfg FetchConfig) error {
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	appender, err := manifest.NewAppender(cfg.ManifestPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = appender.Close()
	}()

	client := search.NewClient(creds, search.Options{
		OrTerms:  cfg.OrTerms,
		CacheTTL: cfg.CacheTTL,
		Retry:    retry.Options{MaxRetries: 3, BackoffInitial: 5 * time.Second, BackoffMax: 5 * time.Second},
	})
	fetcher := fetch.New(client, appender, fetch.Options{
		BaseDir:  cfg.OutDir,
		MaxPages: cfg.MaxPages,
	})

	var total fetch.Stats
	for _, subject := range cfg.Subjects {
		log.Info().Str("subject", subject).Msg("fetching")
		stats, err := fetcher.FetchAll(ctx, subject)
		total.Accepted += stats.Accepted
		total.Skipped += stats.Skipped
		total.Pages += stats.Pages
		if err != nil {
			return err
		}
		log.Info().
			Str("subject", subject).
			Int("accepted", stats.Accepted).
			Int("skipped", stats.Skipped).
			Int("pages", stats.Pages).
			Msg("subject done")
	}

	if err := appender.Close(); err != nil {
		return err
	}
	log.Info().
		Int("subjects", len(cfg.Subjects)).
		Int("accepted", total.Accepted).
		Int("skipped", total.Skipped).
		Str("manifest", cfg.ManifestPath).
		Msg("fetch complete")
	return nil
}

type TagConfig struct {
	ManifestPath string
	TaxonomyPath string
	// OutputPath defaults to "<manifest>_with_tags.csv" when empty.
	OutputPath string
	Engine     tagger.Options
}

// RunTag loads the manifest and taxonomy, annotates every eligible row, and
// writes the merged tagged manifest in one atomic step.
func RunTag(ctx context.Context, model tagger.Model, cfg TagConfig) error {
	doc, err := manifest.Read(cfg.ManifestPath)
	if err != nil {
		return err
	}
	vocabulary, err := taxonomy.Load(cfg.TaxonomyPath)
	if err != nil {
		return err
	}
	log.Info().
		Int("rows", doc.Len()).
		Int("tags", len(vocabulary)).
		Msg("manifest and taxonomy loaded")

	results, summary, err := tagger.Annotate(ctx, doc, vocabulary, model, cfg.Engine)
	if err != nil {
		return err
	}

	outPath := cfg.OutputPath
	if outPath == "" {
		outPath = manifest.DerivedOutputPath(cfg.ManifestPath)
	}
	if err := doc.WithTags(results).WriteAtomic(outPath); err != nil {
		return fmt.Errorf("write tagged manifest: %w", err)
	}

	log.Info().
		Int("rows", summary.Rows).
		Int("submitted", summary.Submitted).
		Int("tagged", summary.Tagged).
		Int("degraded", summary.Degraded).
		Int("skipped_existing", summary.SkippedExisting).
		Int("ineligible", summary.Ineligible).
		Str("output", outPath).
		Msg("tagging complete")
	return nil
}

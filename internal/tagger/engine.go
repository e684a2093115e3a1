// Package tagger is the bounded annotation engine: manifest rows become
// classification jobs correlated by row index, a fixed-size worker pool runs
// them against a vision model, and results aggregate into a per-row tag map.
package tagger

import (
	"context"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/sorenlabs/archtagger/internal/manifest"
	"github.com/sorenlabs/archtagger/internal/util"
	"github.com/sorenlabs/archtagger/pkg/pipeline/worker"
)

// Model is the vision-classification capability: prompt + image in, tag
// list out.
type Model interface {
	Classify(ctx context.Context, prompt string, image []byte, mimeType string) ([]string, error)
}

type Options struct {
	Workers        int
	MaxRetries     int
	RequestTimeout time.Duration
	RateLimitRPS   float64

	// Limit processes only the first N manifest rows when positive.
	Limit int

	// Progress renders a terminal progress bar while jobs complete.
	Progress bool
}

// Summary reports run outcomes for the final log line.
type Summary struct {
	Rows            int
	Submitted       int
	Tagged          int
	Degraded        int
	SkippedExisting int
	Ineligible      int
}

type job struct {
	row  int
	path string
}

// Annotate runs classification over every eligible manifest row and returns
// a map keyed by row index. Every submitted job produces exactly one entry,
// empty tags on failure; rows already carrying tags are skipped entirely so
// reruns never recompute completed work.
func Annotate(ctx context.Context, doc *manifest.Document, vocabulary []string, model Model, opts Options) (map[int][]string, Summary, error) {
	summary := Summary{Rows: doc.Len()}
	results := make(map[int][]string)
	prompt := BuildPrompt(vocabulary)

	limit := doc.Len()
	if opts.Limit > 0 && opts.Limit < limit {
		limit = opts.Limit
	}

	var jobs []job
	for row := 0; row < limit; row++ {
		if doc.HasTags(row) {
			summary.SkippedExisting++
			continue
		}
		path := doc.LocalPath(row)
		if path == "" {
			summary.Ineligible++
			results[row] = nil
			continue
		}
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			log.Warn().Int("row", row).Str("path", path).Msg("image missing, assigning empty tags")
			summary.Ineligible++
			results[row] = nil
			continue
		}
		jobs = append(jobs, job{row: row, path: path})
	}
	summary.Submitted = len(jobs)
	if len(jobs) == 0 {
		return results, summary, nil
	}

	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = progressbar.NewOptions(len(jobs),
			progressbar.OptionSetDescription("tagging"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	processor := func(reqCtx context.Context, j job) ([]string, error) {
		return classifyOne(reqCtx, model, prompt, j)
	}
	onResult := func(res worker.Result[job, []string]) error {
		if bar != nil {
			_ = bar.Add(1)
		}
		return nil
	}

	out, err := worker.ProcessAllWithCallback(ctx, jobs, processor, onResult, worker.Options{
		Workers:        opts.Workers,
		MaxRetries:     opts.MaxRetries,
		RequestTimeout: opts.RequestTimeout,
		RateLimitRPS:   opts.RateLimitRPS,
		FailurePolicy:  worker.FailurePolicyPartialOutput,
	})
	if err != nil {
		return nil, summary, err
	}

	for _, res := range out {
		row := res.Input.row
		if res.Err != nil {
			log.Warn().Int("row", row).Str("path", res.Input.path).
				Str("error", util.RedactSecrets(res.Err.Error())).
				Msg("classification failed, assigning empty tags")
			summary.Degraded++
			results[row] = nil
			continue
		}
		summary.Tagged++
		results[row] = res.Output
	}
	return results, summary, nil
}

// classifyOne loads the job's image and submits it to the model. Unreadable
// files and non-image media types degrade to empty tags without a model call.
func classifyOne(ctx context.Context, model Model, prompt string, j job) ([]string, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		log.Warn().Str("path", j.path).Err(err).Msg("read image failed, assigning empty tags")
		return nil, nil
	}
	mimeType := imageMIMEType(j.path, data)
	if mimeType == "" {
		log.Warn().Str("path", j.path).Msg("not an image media type, assigning empty tags")
		return nil, nil
	}
	return model.Classify(ctx, prompt, data, mimeType)
}

// imageMIMEType resolves a media type by extension first, then by content
// sniffing. Returns "" when neither resolves to an image type.
func imageMIMEType(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); strings.HasPrefix(t, "image/") {
		return t
	}
	if t := http.DetectContentType(data); strings.HasPrefix(t, "image/") {
		return t
	}
	return ""
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sorenlabs/archtagger/internal/app"
	"github.com/sorenlabs/archtagger/internal/config"
	"github.com/sorenlabs/archtagger/internal/fetch"
	"github.com/sorenlabs/archtagger/internal/logging"
	"github.com/sorenlabs/archtagger/internal/tagger"
	"github.com/sorenlabs/archtagger/internal/util"
	"github.com/spf13/cobra"
)

const (
	exitRunFailure = 1
	exitConfig     = 2
)

var rootCmd = &cobra.Command{
	Use:   "archtagger",
	Short: "Collect and tag architectural photographs",
	Long: `archtagger builds an image database of architectural photography.

The fetch command walks a web image search for each configured architect,
downloads the results, and records a provenance manifest. The tag command
annotates every downloaded image with tags from a closed taxonomy using a
Gemini vision model, producing a tagged manifest.

Examples:
  archtagger fetch --out-dir ./google_database --manifest ./metadata.csv
  archtagger tag --manifest ./metadata.csv --taxonomy ./tag_taxonomy.json --workers 12`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var fetchFlags struct {
	outDir       string
	manifestPath string
	subjectsFile string
	maxPages     int
	orTerms      string
	cacheTTL     time.Duration
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Search and download images, writing the acquisition manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := config.LoadSearchCredentials()
		if err != nil {
			return configError(err)
		}

		subjects := fetch.DefaultSubjects
		if fetchFlags.subjectsFile != "" {
			subjects, err = fetch.LoadSubjects(fetchFlags.subjectsFile)
			if err != nil {
				return configError(err)
			}
		}

		return app.RunFetch(cmd.Context(), creds, app.FetchConfig{
			OutDir:       fetchFlags.outDir,
			ManifestPath: fetchFlags.manifestPath,
			Subjects:     subjects,
			MaxPages:     fetchFlags.maxPages,
			OrTerms:      fetchFlags.orTerms,
			CacheTTL:     fetchFlags.cacheTTL,
		})
	},
}

var tagFlags struct {
	manifestPath string
	taxonomyPath string
	outputPath   string
	model        string
	workers      int
	maxRetries   int
	timeout      time.Duration
	rateLimitRPS float64
	limit        int
	noProgress   bool
}

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Annotate manifest images with taxonomy tags via Gemini",
	RunE: func(cmd *cobra.Command, args []string) error {
		apiKey, err := config.LoadGeminiAPIKey()
		if err != nil {
			return configError(err)
		}
		if _, err := os.Stat(tagFlags.manifestPath); err != nil {
			return configError(fmt.Errorf("manifest: %w", err))
		}

		classifier, err := tagger.NewClassifier(cmd.Context(), tagger.Config{
			APIKey: apiKey,
			Model:  tagFlags.model,
		})
		if err != nil {
			return configError(err)
		}
		log.Info().Str("model", classifier.Model()).Msg("classifier ready")

		return app.RunTag(cmd.Context(), classifier, app.TagConfig{
			ManifestPath: tagFlags.manifestPath,
			TaxonomyPath: tagFlags.taxonomyPath,
			OutputPath:   tagFlags.outputPath,
			Engine: tagger.Options{
				Workers:        tagFlags.workers,
				MaxRetries:     tagFlags.maxRetries,
				RequestTimeout: tagFlags.timeout,
				RateLimitRPS:   tagFlags.rateLimitRPS,
				Limit:          tagFlags.limit,
				Progress:       !tagFlags.noProgress,
			},
		})
	},
}

// configError tags an error as a configuration failure for exit-code mapping.
type configErr struct{ error }

func configError(err error) error {
	return configErr{err}
}

func init() {
	fetchCmd.Flags().StringVar(&fetchFlags.outDir, "out-dir", "google_database", "Directory for downloaded images (one folder per subject)")
	fetchCmd.Flags().StringVar(&fetchFlags.manifestPath, "manifest", "architect_google_metadata.csv", "Manifest CSV to append download records to")
	fetchCmd.Flags().StringVar(&fetchFlags.subjectsFile, "subjects-file", "", "File with one subject per line (default: built-in architect list)")
	fetchCmd.Flags().IntVar(&fetchFlags.maxPages, "max-pages", 0, "Max result pages per subject (0 = all)")
	fetchCmd.Flags().StringVar(&fetchFlags.orTerms, "or-terms", "building,interior", "Comma-separated keywords biasing search results")
	fetchCmd.Flags().DurationVar(&fetchFlags.cacheTTL, "cache-ttl", 24*time.Hour, "Search response cache lifetime (0 disables)")

	tagCmd.Flags().StringVar(&tagFlags.manifestPath, "manifest", "", "Input manifest CSV (must include a 'local_path' column)")
	tagCmd.Flags().StringVar(&tagFlags.taxonomyPath, "taxonomy", "", "Tag taxonomy file (nested JSON or YAML)")
	tagCmd.Flags().StringVar(&tagFlags.outputPath, "output", "", "Output CSV path (default: <manifest>_with_tags.csv)")
	tagCmd.Flags().IntVar(&tagFlags.limit, "limit", 0, "Process only the first N rows (0 = all)")
	tagCmd.Flags().BoolVar(&tagFlags.noProgress, "no-progress", false, "Disable the progress bar")
	_ = tagCmd.MarkFlagRequired("manifest")
	_ = tagCmd.MarkFlagRequired("taxonomy")

	rootCmd.AddCommand(fetchCmd, tagCmd)
}

func main() {
	logging.Init()
	config.LoadDotenv()

	tagEnv, err := config.LoadTagOptions()
	if err != nil {
		log.Error().Str("error", util.RedactSecrets(err.Error())).Msg("configuration error")
		os.Exit(exitConfig)
	}
	tagCmd.Flags().StringVar(&tagFlags.model, "model", tagEnv.Model, "Gemini model name (env: GEMINI_MODEL)")
	tagCmd.Flags().IntVar(&tagFlags.workers, "workers", tagEnv.Workers, "Concurrent annotation workers (env: WORKERS)")
	tagCmd.Flags().IntVar(&tagFlags.maxRetries, "max-retries", tagEnv.MaxRetries, "Max retries per image for transient failures (env: MAX_RETRIES)")
	tagCmd.Flags().DurationVar(&tagFlags.timeout, "request-timeout", tagEnv.RequestTimeout, "Per-image request timeout (env: REQUEST_TIMEOUT)")
	tagCmd.Flags().Float64Var(&tagFlags.rateLimitRPS, "rate-limit-rps", tagEnv.RateLimitRPS, "Global model request rate limit, 0 disables (env: RATE_LIMIT_RPS)")

	if err := rootCmd.Execute(); err != nil {
		log.Error().Str("error", util.RedactSecrets(err.Error())).Msg("run failed")
		if _, ok := err.(configErr); ok {
			os.Exit(exitConfig)
		}
		os.Exit(exitRunFailure)
	}
}

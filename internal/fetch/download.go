package fetch

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Accepted image extensions. Anything else is skipped without escalation.
var validExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// maxBaseNameLen bounds derived filenames before the extension.
const maxBaseNameLen = 50

const downloadTimeout = 20 * time.Second

type downloader struct {
	http *resty.Client
}

func newDownloader() *downloader {
	return &downloader{http: resty.New().SetTimeout(downloadTimeout)}
}

// fetchOnce downloads one URL into destDir. Per the acquisition policy the
// bytes are fetched exactly once: any failure (transport, non-2xx status,
// invalid extension, write error) skips the item by returning "".
func (d *downloader) fetchOnce(ctx context.Context, rawURL, destDir string) string {
	name, ok := FileName(rawURL)
	if !ok {
		log.Debug().Str("url", rawURL).Msg("skipping: extension not accepted")
		return ""
	}
	dest := filepath.Join(destDir, name)
	if _, err := os.Stat(dest); err == nil {
		// Already downloaded on a previous run.
		log.Debug().Str("file", name).Msg("skipping: file exists")
		return ""
	}

	resp, err := d.http.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		log.Warn().Str("url", rawURL).Err(err).Msg("download failed")
		return ""
	}
	if resp.StatusCode() != 200 {
		log.Warn().Str("url", rawURL).Int("status", resp.StatusCode()).Msg("skipping: non-success status")
		return ""
	}

	if err := os.WriteFile(dest, resp.Body(), 0o644); err != nil {
		log.Warn().Str("path", dest).Err(err).Msg("skipping: write failed")
		return ""
	}
	return dest
}

// FileName derives a bounded, rerun-stable filename from a source URL.
// Names longer than 50 characters are truncated and disambiguated with the
// first 8 hex characters of the MD5 of the original basename, so the same
// source name always maps to the same output name. Returns ok=false when the
// URL's extension is not an accepted image type.
func FileName(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	raw := path.Base(u.Path)
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}

	ext := strings.ToLower(path.Ext(raw))
	if !validExtensions[ext] {
		return "", false
	}
	name := strings.TrimSuffix(raw, path.Ext(raw))

	if runes := []rune(name); len(runes) > maxBaseNameLen {
		sum := md5.Sum([]byte(raw))
		name = string(runes[:maxBaseNameLen]) + "_" + hex.EncodeToString(sum[:])[:8]
	}
	return name + ext, true
}

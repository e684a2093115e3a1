// Package retry executes single outbound calls with bounded retry and
// rate-limit backoff. Search and model invocations funnel through Do so
// the failure policy lives in one place.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sorenlabs/archtagger/pkg/pipeline/core"
)

type Options struct {
	// MaxRetries is the number of extra attempts after the first failure.
	MaxRetries     int
	RequestTimeout time.Duration

	// BackoffInitial is the initial sleep before retrying a transient failure.
	BackoffInitial time.Duration
	// BackoffMax caps exponential backoff.
	BackoffMax time.Duration
	// BackoffJitterFrac applies +/- jitter to backoff sleeps (0.2 = +/-20%).
	BackoffJitterFrac float64
}

func (o Options) WithDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 2 * time.Second
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 10 * time.Second
	}
	if o.BackoffJitterFrac < 0 {
		o.BackoffJitterFrac = 0
	}
	return o
}

// maxRateLimitReplays bounds rate-limit waits per call. Replays do not
// consume retry attempts, so without a cap an exhausted quota (a daily
// limit, say) would block the worker until the run context expired.
const maxRateLimitReplays = 1

// Do runs op until it succeeds, fails permanently, or exhausts retries.
//
// A core.RateLimitError sleeps the server-advertised delay and replays the
// call once without consuming a retry attempt; a call still rate limited
// after that fails with the rate-limit error. Transient failures retry up
// to MaxRetries extra attempts with exponential backoff. Any other error is
// permanent and returns immediately. Callers treat a returned error as
// "skip this item", never "abort the run".
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts Options) (T, error) {
	opts = opts.WithDefaults()

	var last T
	rateLimitReplays := 0
	for attempt := 0; ; {
		if err := ctx.Err(); err != nil {
			return last, err
		}

		reqCtx := ctx
		var cancel context.CancelFunc
		if opts.RequestTimeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, opts.RequestTimeout)
		}
		result, err := op(reqCtx)
		last = result
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return last, ctx.Err()
		}

		var rle *core.RateLimitError
		if errors.As(err, &rle) {
			if rateLimitReplays >= maxRateLimitReplays {
				return last, err
			}
			rateLimitReplays++
			delay := rle.Delay()
			log.Warn().Dur("delay", delay).Msg("rate limited, waiting for reset")
			if err := sleep(ctx, delay); err != nil {
				return last, err
			}
			continue
		}

		if !IsTransient(err) || attempt >= opts.MaxRetries {
			return last, err
		}

		pause := backoffSleep(opts.BackoffInitial, opts.BackoffMax, opts.BackoffJitterFrac, attempt)
		attempt++
		log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", pause).Msg("transient failure, retrying")
		if err := sleep(ctx, pause); err != nil {
			return last, err
		}
	}
}

// IsTransient reports whether err is worth replaying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *core.TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	}
}

func backoffSleep(initial, max time.Duration, jitterFrac float64, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < max; i++ {
		sleep *= 2
		if sleep > max {
			sleep = max
			break
		}
	}
	if jitterFrac <= 0 {
		return sleep
	}
	// Apply +/- jitterFrac.
	j := 1 + (rand.Float64()*2-1)*jitterFrac
	return time.Duration(float64(sleep) * j)
}

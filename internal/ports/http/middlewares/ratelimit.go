package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/httpx"
)

const DefaultRequestsPerMinute = 10

// RateLimiter caps requests per client IP with a fixed window kept in memory.
type RateLimiter struct {
	limiter    *limiter.Limiter
	errhandler *httpx.ErrorHandler
	now        func() time.Time
}

// NewRateLimiter allows perMinute requests per IP and minute.
//
// WARNING: panics if errhandler is nil
func NewRateLimiter(perMinute int64, errhandler *httpx.ErrorHandler) *RateLimiter {
	if errhandler == nil {
		panic("error handler is required for rate limiter")
	}
	if perMinute <= 0 {
		perMinute = DefaultRequestsPerMinute
	}

	return &RateLimiter{
		limiter: limiter.New(memory.NewStore(), limiter.Rate{
			Period: time.Minute,
			Limit:  perMinute,
		}),
		errhandler: errhandler,
		now:        time.Now,
	}
}

func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		span := trace.SpanFromContext(r.Context())

		lctx, err := l.limiter.Get(r.Context(), l.limiter.GetIPKey(r))
		if err != nil {
			l.errhandler.HandleError(w, r, span, err, "failed to read rate limit")
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			retry := max(int(lctx.Reset-l.now().Unix()), 1)
			l.errhandler.HandleError(w, r, span, errorx.NewRateLimitExceededWithRetry(retry), "rate limit reached")
			return
		}

		next.ServeHTTP(w, r)
	})
}

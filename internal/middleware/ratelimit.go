package middleware

import (
	"net/http"

	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/annoview/annoview/internal/request"
)

const defaultRatelimitRate = "30-S"

// RateLimit returns per-client-IP rate limiting middleware backed by
// ulule/limiter's in-memory store. The service is single-instance, so no
// shared store is needed. rate uses limiter's "<count>-<period>" format.
func RateLimit(rate string) (func(http.Handler) http.Handler, error) {
	if rate == "" {
		rate = defaultRatelimitRate
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	instance := limiter.New(memory.NewStore(), parsed)
	keyGetter := func(r *http.Request) string {
		return request.ClientIP(r)
	}
	mw := stdlibmw.NewMiddleware(instance, stdlibmw.WithKeyGetter(keyGetter))
	return mw.Handler, nil
}

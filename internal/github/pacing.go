package github

import (
	"net/http"

	"golang.org/x/time/rate"
)

// pacedTransport spaces out requests to stay under a fixed request rate.
// It never retries; a failed request is returned to the caller unchanged.
type pacedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func newPacedTransport(base http.RoundTripper, perSecond float64) *pacedTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &pacedTransport{
		base:    base,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

func (t *pacedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

package download

import (
	"context"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/heathweaver/video-transcription/internal/utils"
)

// Prober issues metadata-only HEAD requests to learn expected payload
// sizes. Probes pass through a rate limiter so a batch never hammers the
// remote server with simultaneous HEAD traffic.
type Prober struct {
	client  utils.HTTPDoer
	limiter *rate.Limiter
}

func NewProber(client utils.HTTPDoer, interval rate.Limit) *Prober {
	return &Prober{
		client:  client,
		limiter: rate.NewLimiter(interval, 1),
	}
}

// Probe returns the declared content length for a URL. It is a best-effort
// oracle: any non-success status, missing or zero length, or network error
// yields (0, false), never an error.
func (p *Prober) Probe(ctx context.Context, url string) (int64, bool) {
	log := utils.GetLogger("prober")
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("Error creating HEAD request")
		return 0, false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("Error getting file size")
		return 0, false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().Int("status", resp.StatusCode).Str("url", url).Msg("HEAD request failed")
		return 0, false
	}
	size, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil || size <= 0 {
		log.Warn().Str("url", url).Msg("Could not determine file size")
		return 0, false
	}
	return size, true
}

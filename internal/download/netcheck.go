package download

import (
	"context"
	"net"
	"time"

	"github.com/heathweaver/video-transcription/internal/utils"
)

const (
	netcheckDials    = 3
	netcheckDialPort = "443"
)

// CheckConnectivity runs a DNS lookup and a small TCP dial sample against
// the remote host. It is a pre-flight diagnostic: the caller treats a false
// result as advisory, not as a reason to abort the batch.
func CheckConnectivity(ctx context.Context, host string) bool {
	log := utils.GetLogger("netcheck")
	host, port := splitHostPort(host)

	log.Info().Str("host", host).Msg("Checking DNS resolution")
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		log.Error().Err(err).Str("host", host).Msg("DNS resolution failed")
		return false
	}
	log.Info().Strs("addrs", addrs).Msg("DNS resolution working")
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	reached := false
	for i := 0; i < netcheckDials; i++ {
		start := time.Now()
		conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
		if err != nil {
			log.Warn().Err(err).Int("try", i+1).Msg("Dial failed")
			continue
		}
		conn.Close()
		reached = true
		log.Info().Dur("latency", time.Since(start)).Int("try", i+1).Msg("Host reachable")
	}
	if !reached {
		log.Error().Str("host", host).Msg("Network connectivity failed")
	}
	return reached
}

func splitHostPort(host string) (string, string) {
	if h, p, err := net.SplitHostPort(host); err == nil {
		return h, p
	}
	return host, netcheckDialPort
}

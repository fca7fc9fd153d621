// Package runtime provides a startup probe for the external Tool Gateway,
// used to print a status banner and decide whether to keep retrying in the
// background while the Core Agent starts accepting input anyway.
package runtime

import (
	"context"
	"log"
	"net/http"
	"sync/atomic"
	"time"
)

// GatewayInfo holds the result of gateway reachability detection. It is
// populated by ProbeGateway and safe to query at any time afterward.
type GatewayInfo struct {
	// Reachable reports whether the gateway answered at startup
	// (synchronous check).
	Reachable bool

	// ReachableLater is non-nil only when the gateway was unreachable at
	// startup, triggering a background retry loop. Poll
	// ReachableLater.Load() to check whether a later probe succeeded. Nil
	// means the gateway was already reachable (check Reachable). It stays
	// non-nil after ctx is cancelled; the value then simply stops changing.
	ReachableLater *atomic.Bool
}

// IsReachable returns true when the gateway is usable: either it answered
// at startup, or a background retry has since succeeded.
func (g *GatewayInfo) IsReachable() bool {
	if g.Reachable {
		return true
	}
	if g.ReachableLater != nil {
		return g.ReachableLater.Load()
	}
	return false
}

// StatusString returns a human-readable status line for the startup banner.
func (g *GatewayInfo) StatusString() string {
	switch {
	case g.Reachable:
		return "Tool Gateway: reachable"
	case g.ReachableLater != nil && g.ReachableLater.Load():
		return "Tool Gateway: reachable (recovered)"
	case g.ReachableLater != nil:
		return "Tool Gateway: unreachable (retrying in background)"
	default:
		return "Tool Gateway: unreachable"
	}
}

// ProbeGateway detects whether baseURL answers synchronously (one HTTP GET
// against its /mcp/tools endpoint, with a short timeout), and if not, keeps
// retrying in the background every retryInterval until ctx is cancelled.
//
// Stage 1 (synchronous, bounded by a short timeout): single GET request.
// Stage 2 (async, only when stage 1 fails): a ticking retry loop; the first
// success flips ReachableLater and stops the loop.
//
// The caller should invoke this before starting the Console shell; the
// returned GatewayInfo can be queried at any time, IsReachable() is
// goroutine-safe.
func ProbeGateway(ctx context.Context, baseURL string, retryInterval time.Duration) GatewayInfo {
	info := GatewayInfo{}

	if probeOnce(baseURL, 3*time.Second) {
		info.Reachable = true
		return info
	}

	ready := &atomic.Bool{}
	info.ReachableLater = ready
	log.Printf("[Runtime] Tool Gateway at %s not reachable, retrying in background every %s...", baseURL, retryInterval)

	go func() {
		ticker := time.NewTicker(retryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if probeOnce(baseURL, 3*time.Second) {
					ready.Store(true)
					log.Printf("[Runtime] Tool Gateway at %s became reachable", baseURL)
					return
				}
			}
		}
	}()

	return info
}

func probeOnce(baseURL string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/mcp/tools", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

// Package agent composes the Cache Gateway and the Pending-Sync Store into one
// background worker.
//
// The worker moves through the states parsed, installing, installed,
// activating and activated. A worker whose install fails, or that is replaced
// by a newer one, becomes redundant. Until a worker is activated every request
// passes straight to the origin; afterwards every request goes through the
// gateway's Intercept.
//
// Install always asks to skip waiting, so a successful install is followed by
// activation right away. A SKIP_WAITING control message (over the client
// WebSocket or POST /_agent/control) retries activation of a worker left
// waiting after a failed activation.
//
// Routes:
//
//	GET  /_agent/health        status summary
//	GET  /_agent/metrics       Prometheus scrape endpoint
//	GET  /_agent/generations   cache generation names
//	POST /_agent/pending       enqueue a pending record
//	POST /_agent/sync/{tag}    deliver a sync trigger
//	POST /_agent/control       control message ({"type":"SKIP_WAITING"})
//	GET  /_agent/clients       WebSocket channel for client views
//	*    /*                    everything else, through the gateway
package agent

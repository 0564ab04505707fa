// Package websocket pushes analysis run notifications to browser clients.
//
// A Hub owns the set of connected clients and fans out events.Message values
// published by the analysis service. Broadcast never blocks: a full queue or
// a slow client loses messages rather than stalling a run.
package websocket

// Package websocket is the gorilla/websocket transport for the relay.
//
// Handler performs admission control and the upgrade, then runs the read loop
// of each connection in the request goroutine. Conn owns one writer goroutine
// per socket; every outbound frame, pings included, is queued to it so callers
// never block on a slow peer.
package websocket

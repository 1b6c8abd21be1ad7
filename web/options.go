package web

import "net"

// Options are used for configuring the web server.
type Options struct {
	// BindAddress is the address to listen on. Ignored when Listener is set.
	BindAddress string
	// Listener, if set, is used instead of listening on BindAddress.
	Listener net.Listener
	// CORSOrigins are the allowed cross origin request origins. Empty allows all.
	CORSOrigins []string
}

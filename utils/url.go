package utils

import (
	"net"
	"net/url"
)

func IsValidURL(str string) bool {
	_, err := url.ParseRequestURI(str)
	return err == nil
}

// IsValidHostPort reports whether str is a host:port pair, the form
// Electrum servers are addressed with.
func IsValidHostPort(str string) bool {
	host, port, err := net.SplitHostPort(str)
	return err == nil && len(host) > 0 && len(port) > 0
}

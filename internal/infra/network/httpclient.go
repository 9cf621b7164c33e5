package network

import (
	"net"
	"net/http"
	"time"
)

// UserAgent is sent on every outbound quote request.
const UserAgent = "cyclarb/1.0"

// NewHTTPClient returns a client tuned for short, frequent quote fetches
// against a small set of hosts.
func NewHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: tr, Timeout: 5 * time.Second}
}

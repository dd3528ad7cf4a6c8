// Package util builds the shared HTTP client of the source clients.
package util

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ppiankov/varscore/internal/config"
)

// NewProxyFunc creates a proxy function from configuration. Without explicit
// proxies it falls back to the environment.
func NewProxyFunc(p config.ProxyConfig) func(*http.Request) (*url.URL, error) {
	if p.HTTP == "" && p.HTTPS == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && p.HTTPS != "" {
			return url.Parse(p.HTTPS)
		}
		if p.HTTP != "" {
			return url.Parse(p.HTTP)
		}
		return http.ProxyFromEnvironment(req)
	}
}

// NewHTTPClient returns the client shared by all sources. Connections are
// reused across sources; per-attempt deadlines come from request contexts.
func NewHTTPClient(cfg config.Config) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = NewProxyFunc(cfg.Proxy)
	transport.MaxIdleConnsPerHost = cfg.WorkerConcurrency * 2
	transport.IdleConnTimeout = 90 * time.Second

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}
}

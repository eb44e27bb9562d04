package util

import (
	"net/http"
	"net/url"
	"time"

	"github.com/ppiankov/grievance/internal/model"
	"golang.org/x/net/http/httpproxy"
)

// NewProxyFunc creates a proxy function from explicit settings.
// With no proxy URLs configured it defers to the environment.
func NewProxyFunc(cfg model.ProxyConfig) func(*http.Request) (*url.URL, error) {
	if cfg.HTTP == "" && cfg.HTTPS == "" {
		return http.ProxyFromEnvironment
	}

	proxyURL := (&httpproxy.Config{
		HTTPProxy:  cfg.HTTP,
		HTTPSProxy: cfg.HTTPS,
		NoProxy:    cfg.NoProxy,
	}).ProxyFunc()

	return func(req *http.Request) (*url.URL, error) {
		return proxyURL(req.URL)
	}
}

// NewHTTPClient builds the client used for similarity and slot-filling backends
func NewHTTPClient(timeout time.Duration, proxy model.ProxyConfig) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: NewProxyFunc(proxy),
		},
	}
}

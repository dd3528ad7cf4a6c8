package util

import (
	"net/http"
	"testing"

	"github.com/ppiankov/varscore/internal/config"
)

func TestNewProxyFunc(t *testing.T) {
	fn := NewProxyFunc(config.ProxyConfig{HTTP: "http://proxy:3128", HTTPS: "http://secure:3129"})

	req, _ := http.NewRequest(http.MethodGet, "https://rest.ensembl.org/vep", nil)
	u, err := fn(req)
	if err != nil || u.Host != "secure:3129" {
		t.Errorf("https request: got %v, %v", u, err)
	}

	req, _ = http.NewRequest(http.MethodGet, "http://example.org", nil)
	u, err = fn(req)
	if err != nil || u.Host != "proxy:3128" {
		t.Errorf("http request: got %v, %v", u, err)
	}
}

func TestNewProxyFunc_HTTPOnlyCoversHTTPS(t *testing.T) {
	fn := NewProxyFunc(config.ProxyConfig{HTTP: "http://proxy:3128"})

	req, _ := http.NewRequest(http.MethodGet, "https://myvariant.info/v1", nil)
	u, err := fn(req)
	if err != nil || u.Host != "proxy:3128" {
		t.Errorf("got %v, %v", u, err)
	}
}

func TestNewHTTPClient(t *testing.T) {
	cfg := config.Default()
	client := NewHTTPClient(cfg)

	tr, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatal("expected *http.Transport")
	}
	if tr.MaxIdleConnsPerHost != cfg.WorkerConcurrency*2 {
		t.Errorf("MaxIdleConnsPerHost = %d", tr.MaxIdleConnsPerHost)
	}
	if client.CheckRedirect == nil {
		t.Error("expected redirect policy")
	}
}

package proxy

import (
	"net/http"
	"testing"
)

func TestNewHTTPClientDirect(t *testing.T) {
	c, err := NewHTTPClient("")
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	if c.Transport != nil {
		t.Fatalf("direct client should use the default transport, got %T", c.Transport)
	}
	if c.Timeout != clientTimeout {
		t.Fatalf("timeout = %v", c.Timeout)
	}
}

func TestNewHTTPClientSocks(t *testing.T) {
	c, err := NewHTTPClient("127.0.0.1:1080")
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok || tr.DialContext == nil {
		t.Fatalf("expected socks transport, got %T", c.Transport)
	}
}

package domains

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full url", "https://WWW.Example.com/path/", "example.com"},
		{"http scheme", "http://example.com", "example.com"},
		{"bare host", "example.com", "example.com"},
		{"trailing slash", "example.com/", "example.com"},
		{"subdomain kept", "https://blog.example.com/a/b?c=d", "blog.example.com"},
		{"whitespace", "  www.acme.io  ", "acme.io"},
		{"empty", "", ""},
		{"slash only", "/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDomain(tt.in))
		})
	}
}

func TestIsBrandDomain(t *testing.T) {
	brand := []string{"example.com"}

	tests := []struct {
		name   string
		domain string
		brands []string
		want   bool
	}{
		{"exact", "example.com", brand, true},
		{"subdomain", "sub.example.com", brand, true},
		{"lookalike", "notexample.com", brand, false},
		{"url form", "https://www.example.com/about", brand, true},
		{"brand given as url", "example.com", []string{"https://www.Example.com/"}, true},
		{"empty domain", "", brand, false},
		{"empty brand list", "example.com", nil, false},
		{"empty brand entry", "example.com", []string{""}, false},
		{"second brand", "acme.io", []string{"example.com", "acme.io"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBrandDomain(tt.domain, tt.brands))
		})
	}
}

func TestNormalizeAll(t *testing.T) {
	got := NormalizeAll([]string{"https://acme.com", "www.acme.com", "", "Acme.io/x"})
	assert.Equal(t, []string{"acme.com", "acme.io"}, got)
}

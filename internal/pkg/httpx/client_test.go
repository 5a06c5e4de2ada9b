package httpx

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"envelope", `{"code":2000,"message":"A stream is already open for this thread","data":{}}`, "A stream is already open for this thread"},
		{"error field", `{"error":"rate limited"}`, "rate limited"},
		{"fastapi detail", `{"detail":"Not Found"}`, "Not Found"},
		{"nested error", `{"error":{"message":"bad key"}}`, "bad key"},
		{"plain text", "  upstream exploded\n", "upstream exploded"},
		{"empty", "", "503 Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				Status: "503 Service Unavailable",
				Body:   io.NopCloser(strings.NewReader(tt.body)),
			}
			assert.Equal(t, tt.want, ErrorMessage(resp))
		})
	}
}

func TestNewHTTPClient(t *testing.T) {
	c := NewHTTPClient(ClientConfig{})
	assert.Zero(t, c.Timeout)
	tr, ok := c.Transport.(*http.Transport)
	if assert.True(t, ok) {
		assert.True(t, tr.DisableCompression)
	}
}

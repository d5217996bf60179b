package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewWriteTimeoutOutlivesRequestTimeout(t *testing.T) {
	srv := New(":0", http.NotFoundHandler(), 20*time.Second)

	assert.Equal(t, ":0", srv.Addr)
	assert.Equal(t, 25*time.Second, srv.WriteTimeout)
	assert.Equal(t, readHeaderTimeout, srv.ReadHeaderTimeout)
	assert.Equal(t, maxHeaderBytes, srv.MaxHeaderBytes)
}

func TestNewDefaultsRequestTimeout(t *testing.T) {
	srv := New(":0", http.NotFoundHandler(), 0)

	assert.Equal(t, defaultRequestTimeout+writeSlack, srv.WriteTimeout)
}

package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Run("applies configured timeouts", func(t *testing.T) {
		srv := New(":9090", http.NewServeMux(), Options{
			ReadHeaderTimeout: 2 * time.Second,
			ReadTimeout:       4 * time.Second,
			WriteTimeout:      8 * time.Second,
			IdleTimeout:       16 * time.Second,
		})

		assert.Equal(t, ":9090", srv.Addr)
		assert.Equal(t, 2*time.Second, srv.ReadHeaderTimeout)
		assert.Equal(t, 4*time.Second, srv.ReadTimeout)
		assert.Equal(t, 8*time.Second, srv.WriteTimeout)
		assert.Equal(t, 16*time.Second, srv.IdleTimeout)
	})

	t.Run("unset timeouts fall back to defaults", func(t *testing.T) {
		srv := New(":8080", http.NewServeMux(), Options{})

		assert.Equal(t, defaultReadHeaderTimeout, srv.ReadHeaderTimeout)
		assert.Equal(t, defaultReadTimeout, srv.ReadTimeout)
		assert.Equal(t, defaultWriteTimeout, srv.WriteTimeout)
		assert.Equal(t, defaultIdleTimeout, srv.IdleTimeout)
	})
}

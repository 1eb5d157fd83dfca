package metrics

import (
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/nspcc-dev/notetree/pkg/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func get(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestPrometheusService(t *testing.T) {
	cfg := config.BasicService{
		Enabled:   true,
		Addresses: []string{"127.0.0.1:0"},
	}
	s := NewPrometheusService(cfg, zaptest.NewLogger(t))
	require.NoError(t, s.Start())
	require.NoError(t, s.Start()) // no-op
	t.Cleanup(s.ShutDown)

	addrs := s.Addresses()
	require.Equal(t, 1, len(addrs))
	code, body := get(t, "http://"+addrs[0]+"/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "go_goroutines")
}

func TestPprofService(t *testing.T) {
	cfg := config.BasicService{
		Enabled:   true,
		Addresses: []string{"127.0.0.1:0"},
	}
	s := NewPprofService(cfg, zaptest.NewLogger(t))
	require.NoError(t, s.Start())
	t.Cleanup(s.ShutDown)

	code, _ := get(t, "http://"+s.Addresses()[0]+"/debug/pprof/")
	require.Equal(t, http.StatusOK, code)
}

func TestDisabledService(t *testing.T) {
	s := NewPrometheusService(config.BasicService{Addresses: []string{"127.0.0.1:0"}}, zaptest.NewLogger(t))
	require.NoError(t, s.Start())
	s.ShutDown()
	require.Equal(t, []string{"127.0.0.1:0"}, s.Addresses())

	require.Nil(t, NewPrometheusService(config.BasicService{}, nil))
}

func TestServiceStartFailure(t *testing.T) {
	// Reserve a free port for the first endpoint.
	free, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	freeAddr := free.Addr().String()
	require.NoError(t, free.Close())

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := config.BasicService{
		Enabled:   true,
		Addresses: []string{freeAddr, busy.Addr().String()},
	}
	s := NewPrometheusService(cfg, zaptest.NewLogger(t))
	require.Error(t, s.Start())
	require.Equal(t, cfg.Addresses, s.Addresses())

	// The first endpoint is released.
	ln, err := net.Listen("tcp", freeAddr)
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	// Service can be started once the address is available.
	require.NoError(t, busy.Close())
	require.NoError(t, s.Start())
	t.Cleanup(s.ShutDown)
	code, _ := get(t, "http://"+s.Addresses()[1]+"/metrics")
	require.Equal(t, http.StatusOK, code)
}

package cmd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaemonStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "salesdashd.json")
	in := daemonState{
		PID:       os.Getpid(),
		Addr:      "127.0.0.1:8787",
		StartedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Origin:    "file:/tmp/sales.json",
		Config:    "/etc/salesdash.toml",
	}
	require.NoError(t, saveDaemonState(path, in))

	out, err := loadDaemonState(path)
	require.NoError(t, err)
	assert.Equal(t, in.PID, out.PID)
	assert.Equal(t, in.Origin, out.Origin)
	assert.True(t, in.StartedAt.Equal(out.StartedAt))
	assert.Equal(t, "http://127.0.0.1:8787/v1/status", out.url("/v1/status"))

	st, ok := liveDaemon(path)
	assert.True(t, ok)
	assert.Equal(t, in.Addr, st.Addr)
}

func TestLiveDaemonRemovesStaleState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "salesdashd.json")
	require.NoError(t, saveDaemonState(path, daemonState{PID: 99999999, Addr: "127.0.0.1:1"}))

	_, ok := liveDaemon(path)
	assert.False(t, ok)
	assert.NoFileExists(t, path)
}

func TestLoadDaemonStateRejectsBadPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "salesdashd.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pid":0}`), 0o600))

	_, err := loadDaemonState(path)
	require.Error(t, err)
	_, ok := liveDaemon(path)
	assert.False(t, ok)
}

func TestChildArgs(t *testing.T) {
	got := childArgs([]string{"daemon", "--detach", "--addr", ":9000", "--detach=true"})
	assert.Equal(t, []string{"daemon", "--addr", ":9000", "--child"}, got)
}

func TestWaitReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	}))
	defer srv.Close()

	require.NoError(t, waitReady(context.Background(), srv.URL, time.Second, make(chan error)))
}

func TestWaitReadyChildExited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	exited := make(chan error, 1)
	exited <- errors.New("exit status 1")
	err := waitReady(context.Background(), srv.URL, 5*time.Second, exited)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 1")
}

func TestWaitReadyTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := waitReady(context.Background(), srv.URL, 300*time.Millisecond, make(chan error))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no answer")
}

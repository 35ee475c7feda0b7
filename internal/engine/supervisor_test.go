package engine_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/vvspeak/internal/config"
	"github.com/shouni/vvspeak/internal/engine"
	"github.com/shouni/vvspeak/pkg/voicevox"
)

func TestEnsure_AlreadyRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`"0.1.0"`))
	}))
	defer srv.Close()

	client := voicevox.NewClient(srv.URL, 2*time.Second)
	cfg := config.VoiceVox{BaseURL: srv.URL, ConnectionTimeout: 2 * time.Second}
	sup := engine.New(client, cfg)

	err := sup.Ensure(context.Background())
	require.NoError(t, err)
	assert.True(t, sup.Status().Running)
}

func TestEnsure_UnreachableWithoutAutoStartFails(t *testing.T) {
	client := voicevox.NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	cfg := config.VoiceVox{BaseURL: "http://127.0.0.1:1", ConnectionTimeout: 200 * time.Millisecond, AutoStartEngine: false}
	sup := engine.New(client, cfg)

	err := sup.Ensure(context.Background())
	require.Error(t, err)
	var unavailable *voicevox.EngineUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestRelease_NoopWhenNothingSpawned(t *testing.T) {
	client := voicevox.NewClient("http://127.0.0.1:1", time.Second)
	cfg := config.VoiceVox{KeepEngineRunning: false}
	sup := engine.New(client, cfg)
	sup.Release() // must not panic
}

package orchestrator_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/shouni/vvspeak/internal/cache"
	"github.com/shouni/vvspeak/internal/filler"
	"github.com/shouni/vvspeak/internal/orchestrator"
	"github.com/shouni/vvspeak/pkg/voicevox"
)

type recordingPlayer struct {
	mu     sync.Mutex
	played [][]byte
}

func (r *recordingPlayer) PlayBlob(_ context.Context, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.played = append(r.played, blob)
	return nil
}

func (r *recordingPlayer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.played)
}

func minimalWAV() []byte {
	return []byte{
		'R', 'I', 'F', 'F', 0, 0, 0, 0, 'W', 'A', 'V', 'E',
		'f', 'm', 't', ' ', 16, 0, 0, 0,
		1, 0, 1, 0,
		0x80, 0x3E, 0, 0,
		0, 0, 0, 0,
		2, 0, 16, 0,
		'd', 'a', 't', 'a', 4, 0, 0, 0,
		1, 0, 2, 0,
	}
}

func fakeEngine() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio_query":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"speedScale":1.0,"pitchScale":0.0,"volumeScale":1.0}`))
		case "/synthesis":
			_, _ = w.Write(minimalWAV())
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestOrchestrator(t *testing.T, srv *httptest.Server) (*orchestrator.Orchestrator, *recordingPlayer) {
	t.Helper()
	audioCache, err := cache.New(t.TempDir(), 0, 1.0)
	require.NoError(t, err)
	fillerCache, err := cache.New(t.TempDir(), 0, 1.0)
	require.NoError(t, err)

	client := voicevox.NewClient(srv.URL, 2*time.Second)
	bank := filler.New(fillerCache, nil, 1)
	player := &recordingPlayer{}
	limiter := rate.NewLimiter(rate.Inf, 1)

	return orchestrator.New(client, audioCache, bank, player, limiter), player
}

func TestRun_BlankInputIsNoop(t *testing.T) {
	srv := fakeEngine()
	defer srv.Close()
	orch, player := newTestOrchestrator(t, srv)

	err := orch.Run(context.Background(), "   ", orchestrator.Options{Speaker: 1, Speed: 1, Pitch: 0, Volume: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, player.count())
}

func TestRun_SynthesizesAndPlaysThenCachesSecondRunFree(t *testing.T) {
	srv := fakeEngine()
	defer srv.Close()
	orch, player := newTestOrchestrator(t, srv)

	opts := orchestrator.Options{Speaker: 1, Speed: 1, Pitch: 0, Volume: 1}
	require.NoError(t, orch.Run(context.Background(), "こんにちは、世界！", opts))
	assert.Equal(t, 1, player.count())

	// Second run of the identical text must play from cache: with the
	// engine shut down, only a cache hit can produce the second playback.
	srv.Close()
	require.NoError(t, orch.Run(context.Background(), "こんにちは、世界！", opts))
	assert.Equal(t, 2, player.count())
}

func TestRun_CacheOnlyWithEmptyCacheFails(t *testing.T) {
	srv := fakeEngine()
	defer srv.Close()
	orch, player := newTestOrchestrator(t, srv)

	opts := orchestrator.Options{Speaker: 1, Speed: 1, Pitch: 0, Volume: 1, CacheOnly: true}
	err := orch.Run(context.Background(), "テスト", opts)
	require.Error(t, err)
	var miss *voicevox.CacheMissError
	assert.ErrorAs(t, err, &miss)
	assert.Equal(t, 0, player.count())
}

func TestRun_CacheOnlyWithOutPathCombinesCachedSegmentsWithoutNewSynthesis(t *testing.T) {
	var synthCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio_query":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"speedScale":1.0,"pitchScale":0.0,"volumeScale":1.0}`))
		case "/synthesis":
			synthCalls++
			_, _ = w.Write(minimalWAV())
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	orch, player := newTestOrchestrator(t, srv)

	opts := orchestrator.Options{Speaker: 1, Speed: 1, Pitch: 0, Volume: 1}
	require.NoError(t, orch.Run(context.Background(), "こんにちは。元気ですか？", opts))
	assert.Equal(t, 2, player.count())
	primed := synthCalls

	outPath := filepath.Join(t.TempDir(), "out.wav")
	cacheOnlyOpts := orchestrator.Options{Speaker: 1, Speed: 1, Pitch: 0, Volume: 1, CacheOnly: true, NoPlay: true, OutPath: outPath}
	require.NoError(t, orch.Run(context.Background(), "こんにちは。元気ですか？", cacheOnlyOpts))

	assert.Equal(t, primed, synthCalls, "cache-only must not place any additional synthesis call")
	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRun_OutPathWritesFile(t *testing.T) {
	srv := fakeEngine()
	defer srv.Close()
	orch, _ := newTestOrchestrator(t, srv)

	outPath := filepath.Join(t.TempDir(), "out.wav")
	opts := orchestrator.Options{Speaker: 1, Speed: 1, Pitch: 0, Volume: 1, NoPlay: true, OutPath: outPath}

	require.NoError(t, orch.Run(context.Background(), "テスト", opts))
	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRun_NoCacheBypassesSegmentation(t *testing.T) {
	srv := fakeEngine()
	defer srv.Close()
	orch, player := newTestOrchestrator(t, srv)

	opts := orchestrator.Options{Speaker: 1, Speed: 1, Pitch: 0, Volume: 1, NoCache: true}
	require.NoError(t, orch.Run(context.Background(), "こんにちは。元気ですか？", opts))
	assert.Equal(t, 1, player.count())
}

package voicevox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
)

// ----------------------------------------------------------------------
// クライアント構造体とコンストラクタ
// ----------------------------------------------------------------------

// Client talks to a single VOICEVOX-compatible engine instance over HTTP.
// The engine is documented as non-reentrant: Client serializes every
// audio_query/synthesis/initialize_speaker call behind callMu so at most
// one request is ever in flight, regardless of how many goroutines call
// into it concurrently.
type Client struct {
	http    *httpkit.Client
	baseURL string

	callMu sync.Mutex

	primedMu sync.Mutex
	primed   map[int]struct{}
}

// NewClient builds a Client against baseURL (e.g. http://127.0.0.1:50021).
// httpkit.New gives the inner transport retry behavior for transient
// network failures; the outer callMu is the correctness-critical lock, not
// an optimization.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http:    httpkit.New(timeout),
		baseURL: baseURL,
		primed:  make(map[int]struct{}),
	}
}

// Version probes GET /version. Any non-2xx status or network error is
// reported as not-ready via the returned error.
func (c *Client) Version(ctx context.Context) (string, error) {
	body, err := c.doGet(ctx, c.baseURL+"/version")
	if err != nil {
		return "", err
	}
	return string(bytes.Trim(body, `"`+"\n\r ")), nil
}

// Speakers fetches GET /speakers and returns the raw JSON array body; the
// caller decodes it (kept opaque here so this client has no dependency on
// the speaker-table shape).
func (c *Client) Speakers(ctx context.Context) ([]byte, error) {
	return c.doGet(ctx, c.baseURL+"/speakers")
}

// InitializeSpeaker primes speakerID exactly once per process. Subsequent
// calls for the same id are no-ops, matching the engine's documented
// idempotent-but-expensive initialization cost.
func (c *Client) InitializeSpeaker(ctx context.Context, speakerID int) error {
	c.primedMu.Lock()
	_, done := c.primed[speakerID]
	c.primedMu.Unlock()
	if done {
		return nil
	}

	endpoint := "/initialize_speaker"
	urlStr := fmt.Sprintf("%s%s?speaker=%d", c.baseURL, endpoint, speakerID)

	c.callMu.Lock()
	_, err := c.doPost(ctx, urlStr, nil, "")
	c.callMu.Unlock()
	if err != nil {
		return &SynthError{Endpoint: endpoint, WrappedErr: err}
	}

	c.primedMu.Lock()
	c.primed[speakerID] = struct{}{}
	c.primedMu.Unlock()
	return nil
}

// SynthesizeText runs audio_query then synthesis for req as one atomic
// serialized operation, holding callMu across both HTTP calls as the
// backend's non-reentrancy requires. This is the only path that produces
// audio: a single lock scope that matches the "at most one in-flight call"
// invariant exactly, rather than separate AudioQuery/Synthesize calls that
// a caller could interleave incorrectly.
func (c *Client) SynthesizeText(ctx context.Context, req VoiceRequest) ([]byte, error) {
	if err := c.InitializeSpeaker(ctx, req.SpeakerID); err != nil {
		return nil, err
	}

	c.callMu.Lock()
	defer c.callMu.Unlock()

	queryEndpoint := "/audio_query"
	urlStr := fmt.Sprintf("%s%s?text=%s&speaker=%d", c.baseURL, queryEndpoint, url.QueryEscape(req.Text), req.SpeakerID)
	body, err := c.doPost(ctx, urlStr, nil, "")
	if err != nil {
		return nil, &SynthError{Endpoint: queryEndpoint, WrappedErr: err}
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &SynthError{Endpoint: queryEndpoint, WrappedErr: fmt.Errorf("decoding audio_query response: %w", err)}
	}
	doc["speedScale"] = req.Speed
	doc["pitchScale"] = req.Pitch
	doc["volumeScale"] = req.Volume

	edited, err := json.Marshal(doc)
	if err != nil {
		return nil, &SynthError{Endpoint: queryEndpoint, WrappedErr: fmt.Errorf("re-encoding audio_query response: %w", err)}
	}

	synthEndpoint := "/synthesis"
	synthURL := fmt.Sprintf("%s%s?speaker=%d", c.baseURL, synthEndpoint, req.SpeakerID)
	wav, err := c.doPost(ctx, synthURL, edited, "application/json")
	if err != nil {
		return nil, &SynthError{Endpoint: synthEndpoint, WrappedErr: err}
	}
	return wav, nil
}

// ----------------------------------------------------------------------
// 低レベルHTTPヘルパー
// ----------------------------------------------------------------------

func (c *Client) doGet(ctx context.Context, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", urlStr, err)
	}
	return c.do(req)
}

func (c *Client) doPost(ctx context.Context, urlStr string, payload []byte, contentType string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, reader)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", urlStr, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		display := string(body)
		if len(display) > 200 {
			display = display[:200] + "..."
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, display)
	}
	return body, nil
}

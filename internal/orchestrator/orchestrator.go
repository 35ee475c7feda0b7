// Package orchestrator drives one command invocation end to end: segment
// the input, resolve against the cache, synthesize what's missing in the
// background while the player streams whatever is ready, with filler
// covering the gaps.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shouni/vvspeak/internal/audiocodec"
	"github.com/shouni/vvspeak/internal/cache"
	"github.com/shouni/vvspeak/internal/filler"
	"github.com/shouni/vvspeak/internal/fingerprint"
	"github.com/shouni/vvspeak/internal/segment"
	"github.com/shouni/vvspeak/pkg/voicevox"
)

// fillerPollInterval bounds how often the player re-checks a pending
// entry when no filler is available to play in the meantime. Kept as a
// fallback upper bound; filler playback is the preferred way to cover a
// wait.
const fillerPollInterval = 50 * time.Millisecond

// BlobPlayer is the narrow surface the Orchestrator needs from the audio
// player, kept as an interface so tests can substitute a recorder instead
// of opening a real device.
type BlobPlayer interface {
	PlayBlob(ctx context.Context, blob []byte) error
}

// Options carries the per-invocation CLI flags the Orchestrator needs.
type Options struct {
	Speaker   int
	Speed     float64
	Pitch     float64
	Volume    float64
	NoCache   bool
	CacheOnly bool
	NoPlay    bool
	OutPath   string
}

func (o Options) requestFor(text string) voicevox.VoiceRequest {
	return voicevox.VoiceRequest{Text: text, SpeakerID: o.Speaker, Speed: o.Speed, Pitch: o.Pitch, Volume: o.Volume}
}

// Orchestrator wires together the components that resolve and play one
// utterance.
type Orchestrator struct {
	Client  *voicevox.Client
	Cache   *cache.Store
	Fillers *filler.Bank
	Player  BlobPlayer
	Pacing  *rate.Limiter
}

// New builds an Orchestrator. pacing limits how fast the background
// producer issues synthesis calls (a pause between segment attempts,
// not a throughput cap — SynthClient itself already serializes calls).
func New(client *voicevox.Client, audioCache *cache.Store, fillers *filler.Bank, player BlobPlayer, pacing *rate.Limiter) *Orchestrator {
	return &Orchestrator{Client: client, Cache: audioCache, Fillers: fillers, Player: player, Pacing: pacing}
}

// Run executes one command invocation for text under opts.
func (o *Orchestrator) Run(ctx context.Context, text string, opts Options) error {
	if opts.NoCache {
		return o.runUncached(ctx, text, opts)
	}

	texts := segment.Split(text)
	if len(texts) == 0 {
		slog.Info("orchestrator: blank input, nothing to do")
		return o.writeOutIfRequested(ctx, text, opts, nil)
	}

	entries := make([]*segment.Entry, len(texts))
	pending := 0
	for i, t := range texts {
		req := opts.requestFor(t)
		key := fingerprint.Key(t, req)
		e := segment.New(i, t, key)
		if data, ok := o.Cache.Get(key); ok {
			e.MarkReady(data)
		} else {
			pending++
		}
		entries[i] = e
	}

	if opts.CacheOnly && pending > 0 {
		idx := firstPendingIndex(entries)
		return &voicevox.CacheMissError{SegmentIndex: idx, Text: entries[idx].Text}
	}

	if !opts.NoPlay {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			o.produce(gctx, entries, opts)
			return nil
		})
		g.Go(func() error {
			return o.play(gctx, entries)
		})
		if err := g.Wait(); err != nil {
			return err
		}
	} else if pending > 0 && !opts.CacheOnly {
		// Still resolve the cache for future invocations even though
		// nothing plays this time; best-effort, errors are logged only.
		o.produce(ctx, entries, opts)
	}

	return o.writeOutIfRequested(ctx, text, opts, entries)
}

// produce walks pending entries in order, synthesizing and writing
// through to the cache. A failing segment is marked failed and does not
// stop the utterance, per the segmented-path error policy.
func (o *Orchestrator) produce(ctx context.Context, entries []*segment.Entry, opts Options) {
	for _, e := range entries {
		if e.IsReady() {
			continue
		}
		if o.Pacing != nil {
			if err := o.Pacing.Wait(ctx); err != nil {
				return
			}
		}

		req := opts.requestFor(e.Text)
		wav, err := o.Client.SynthesizeText(ctx, req)
		if err != nil {
			slog.Warn("orchestrator: segment synthesis failed, skipping", "index", e.Index, "error", err)
			e.MarkFailed()
			continue
		}

		o.Cache.Put(e.Key, wav, cache.Entry{
			Text: e.Text, SpeakerID: req.SpeakerID, Speed: req.Speed, Pitch: req.Pitch, Volume: req.Volume,
		})
		e.MarkReady(wav)
	}
}

// play drives entries to the Player in order, covering any not-yet-ready
// entry with filler playback until the producer resolves or abandons it.
func (o *Orchestrator) play(ctx context.Context, entries []*segment.Entry) error {
	for _, e := range entries {
		atSegment := func(err error) error {
			var pe *voicevox.PlaybackError
			if errors.As(err, &pe) {
				pe.SegmentIndex = e.Index
			}
			return err
		}

		for !e.IsReady() && !e.IsFailed() {
			select {
			case <-ctx.Done():
				return &voicevox.CancelledError{}
			default:
			}

			if fillerData, ok := o.Fillers.Random(); ok {
				if err := o.Player.PlayBlob(ctx, fillerData); err != nil {
					return atSegment(err)
				}
			} else {
				time.Sleep(fillerPollInterval)
			}
		}

		if e.IsFailed() {
			continue
		}
		if err := o.Player.PlayBlob(ctx, e.Audio()); err != nil {
			return atSegment(err)
		}
	}
	return nil
}

// runUncached bypasses the segmented cache path entirely: the whole text
// is synthesized in one call and played, per the --no-cache contract. A
// synthesis failure here is fatal, unlike the segmented path.
func (o *Orchestrator) runUncached(ctx context.Context, text string, opts Options) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	req := opts.requestFor(text)
	wav, err := o.Client.SynthesizeText(ctx, req)
	if err != nil {
		return &voicevox.SynthError{Endpoint: "synthesis", WrappedErr: err}
	}

	if !opts.NoPlay {
		if err := o.Player.PlayBlob(ctx, wav); err != nil {
			return err
		}
	}

	if opts.OutPath == "" {
		return nil
	}
	return writeOut(wav, opts.OutPath)
}

// writeOutIfRequested writes opts.OutPath when set. Under --cache-only,
// every entry is already known to be ready (Run already failed otherwise),
// so the artifact is assembled by combining the cached segment bytes
// instead of placing another call to the backend — --cache-only means no
// synthesis happens, full stop. Otherwise the whole text is synthesized
// once in a single call, independent of the segmented cache path, to
// guarantee a single coherent artifact.
func (o *Orchestrator) writeOutIfRequested(ctx context.Context, text string, opts Options, entries []*segment.Entry) error {
	if opts.OutPath == "" {
		return nil
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if opts.CacheOnly && len(entries) > 0 {
		combined, err := combineEntries(entries)
		if err != nil {
			return fmt.Errorf("orchestrator: failed to assemble --out artifact from cache: %w", err)
		}
		return writeOut(combined, opts.OutPath)
	}

	wav, err := o.Client.SynthesizeText(ctx, opts.requestFor(text))
	if err != nil {
		return &voicevox.SynthError{Endpoint: "synthesis", WrappedErr: err}
	}
	return writeOut(wav, opts.OutPath)
}

// combineEntries normalizes every entry's cached payload to WAV (cached
// payloads are often MP3-transcoded by the store) and concatenates their
// PCM into one WAV blob via audiocodec.CombineWAV.
func combineEntries(entries []*segment.Entry) ([]byte, error) {
	wavBlobs := make([][]byte, 0, len(entries))
	for _, e := range entries {
		wav, err := toWAV(e.Audio())
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", e.Index, err)
		}
		wavBlobs = append(wavBlobs, wav)
	}
	return audiocodec.CombineWAV(wavBlobs)
}

// toWAV returns blob unchanged if it is already WAV, or decodes it from
// MP3 otherwise.
func toWAV(blob []byte) ([]byte, error) {
	if audiocodec.Sniff(blob) == audiocodec.FormatMP3 {
		return audiocodec.FromMP3(blob)
	}
	return blob, nil
}

// writeOut writes wav (raw WAV bytes from the engine) to path, transcoding
// to MP3 when the extension asks for it and writing the WAV as-is
// otherwise.
func writeOut(wav []byte, path string) error {
	if strings.HasSuffix(strings.ToLower(path), ".mp3") {
		mp3Bytes, ok := audiocodec.ToMP3(wav)
		if !ok {
			return fmt.Errorf("orchestrator: failed to transcode output to mp3")
		}
		return os.WriteFile(path, mp3Bytes, 0o644)
	}
	return os.WriteFile(path, wav, 0o644)
}

func firstPendingIndex(entries []*segment.Entry) int {
	for _, e := range entries {
		if !e.IsReady() {
			return e.Index
		}
	}
	return -1
}

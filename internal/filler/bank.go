// Package filler owns the pre-synthesized short utterances played to mask
// the latency of a not-yet-ready segment.
package filler

import (
	"context"
	"log/slog"
	"math/rand"

	"github.com/shouni/vvspeak/internal/cache"
	"github.com/shouni/vvspeak/internal/fingerprint"
	"github.com/shouni/vvspeak/pkg/voicevox"
)

// Bank owns a small configured set of filler texts, synthesized once via
// --init and retrieved at random during playback. It never falls back to
// synthesizing on demand: a cache miss just means no filler is available
// and the Orchestrator waits silently, per the spec's gap-coverage design.
type Bank struct {
	store     *cache.Store
	texts     []string
	speakerID int
}

// New builds a Bank over store for the given filler texts and the speaker
// id fillers should be voiced with (the command's requested speaker).
func New(store *cache.Store, texts []string, speakerID int) *Bank {
	return &Bank{store: store, texts: texts, speakerID: speakerID}
}

// Init synthesizes every configured filler text through client and writes
// it into the cache, so all are on disk before the Orchestrator ever needs
// one. Running Init twice leaves the directory indistinguishable from
// running it once, since each entry's key depends only on its text and
// the fixed filler voice parameters.
func (b *Bank) Init(ctx context.Context, client *voicevox.Client) error {
	for _, text := range b.texts {
		req := voicevox.NewVoiceRequest(text, b.speakerID)
		key := fingerprint.Key(text, req)

		if _, hit := b.store.Get(key); hit {
			continue
		}

		wav, err := client.SynthesizeText(ctx, req)
		if err != nil {
			slog.Warn("filler: failed to synthesize filler entry", "text", text, "error", err)
			continue
		}
		b.store.Put(key, wav, cache.Entry{
			Text: text, SpeakerID: req.SpeakerID, Speed: req.Speed, Pitch: req.Pitch, Volume: req.Volume,
		})
	}
	return nil
}

// Random returns a uniformly random filler entry's bytes, or false if the
// bank has no entries on disk yet (uninitialized).
func (b *Bank) Random() ([]byte, bool) {
	if len(b.texts) == 0 {
		return nil, false
	}

	// Shuffle the starting index so repeated misses during one utterance
	// don't always retry the same (possibly still-missing) entry first.
	start := rand.Intn(len(b.texts))
	for i := 0; i < len(b.texts); i++ {
		text := b.texts[(start+i)%len(b.texts)]
		key := fingerprint.Key(text, voicevox.NewVoiceRequest(text, b.speakerID))
		if data, ok := b.store.Get(key); ok {
			return data, true
		}
	}
	return nil, false
}

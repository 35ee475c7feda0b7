// Package player decodes and sequentially plays audio blobs on the
// configured output device with low inter-segment latency.
package player

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/shouni/vvspeak/internal/audiocodec"
	"github.com/shouni/vvspeak/pkg/voicevox"
)

// state tracks the device lifecycle: Idle until the first PlayBlob opens
// the device, Opening while it opens, then Playing. There is no separate
// transitioning state between blobs, and stateDraining is never entered.
type state int

const (
	stateIdle state = iota
	stateOpening
	statePlaying
	stateDraining
)

// Options configures device preparation and gain.
type Options struct {
	Volume                float64 // clamped to [0.0, 1.0] at the device layer
	PrepareDevice         bool
	PreparationDurationMs int
	PreparationVolume     float64

	// DeviceIndex selects an output device by the index device.List
	// reports, or -1 for the system default. oto/v3 opens the system's
	// default output device unconditionally and exposes no per-device
	// selection API, so a non-default index cannot be honored here; it
	// is only warned about, never silently accepted as a no-op.
	DeviceIndex int
}

// Player owns the output device handle. The device is opened once, on the
// first PlayBlob, and stays open for the rest of the process; Player has
// no call that closes it when a sequence ends.
type Player struct {
	opts Options

	mu      sync.Mutex
	state   state
	ctx     *oto.Context
	current *oto.Player
}

// New constructs a Player with the given playback options. The device is
// opened lazily on the first PlayBlob call so --no-play / --out-only
// invocations never touch the audio subsystem.
func New(opts Options) *Player {
	if opts.DeviceIndex >= 0 {
		slog.Warn("player: Audio.OutputDevice is set but oto has no device-selection API, playing on the system default device", "requested_index", opts.DeviceIndex)
	}
	return &Player{opts: opts}
}

// PlayBlob sniffs, decodes, and plays one audio blob to completion,
// opening the device on first use and reusing it for every subsequent
// call so device-open latency is paid at most once per utterance.
func (p *Player) PlayBlob(ctx context.Context, blob []byte) error {
	sampleRate, channels, pcm, err := audiocodec.DecodePCM16(blob)
	if err != nil {
		return &voicevox.PlaybackError{WrappedErr: err}
	}

	p.mu.Lock()
	if p.state == stateIdle {
		p.state = stateOpening
		if err := p.open(sampleRate, channels); err != nil {
			p.state = stateIdle
			p.mu.Unlock()
			return &voicevox.PlaybackError{WrappedErr: err}
		}
		if p.opts.PrepareDevice {
			p.prepareLocked(sampleRate, channels)
		}
	}
	otoCtx := p.ctx
	p.state = statePlaying
	p.mu.Unlock()

	gained := applyGain(pcm, p.opts.Volume)

	player := otoCtx.NewPlayer(bytes.NewReader(gained))
	p.mu.Lock()
	p.current = player
	p.mu.Unlock()

	player.Play()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			_ = player.Close()
			p.mu.Lock()
			p.current = nil
			p.mu.Unlock()
			return &voicevox.CancelledError{}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()

	return player.Close()
}

// Stop interrupts the in-flight blob, if any. Safe to call concurrently
// and when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		p.current.Pause()
	}
	p.state = stateIdle
}

func (p *Player) open(sampleRate, channels int) error {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return err
	}
	<-ready
	p.ctx = ctx
	return nil
}

// prepareLocked plays PreparationDurationMs of near-silence at
// PreparationVolume before the first real segment, suppressing
// first-segment clipping on devices that power down aggressively.
// Must be called with p.mu held and p.ctx already opened with sampleRate
// and channels.
func (p *Player) prepareLocked(sampleRate, channels int) {
	if p.opts.PreparationDurationMs <= 0 {
		return
	}
	samples := sampleRate * channels * p.opts.PreparationDurationMs / 1000
	silence := make([]byte, samples*2)
	amp := int16(math.Round(p.opts.PreparationVolume * 8))
	for i := 0; i+1 < len(silence); i += 2 {
		silence[i] = byte(amp)
		silence[i+1] = byte(amp >> 8)
	}

	warm := p.ctx.NewPlayer(bytes.NewReader(silence))
	warm.Play()
	for warm.IsPlaying() {
		time.Sleep(5 * time.Millisecond)
	}
	_ = warm.Close()
}

// applyGain scales 16-bit PCM samples by volume, clamped to [0.0, 1.0].
// oto has no library-level gain control, so values above 1.0 are clamped
// rather than honored, with the clamp happening here at the device layer.
func applyGain(pcm []byte, volume float64) []byte {
	if volume > 1.0 {
		volume = 1.0
	}
	if volume < 0 {
		volume = 0
	}
	if volume == 1.0 {
		return pcm
	}

	out := make([]byte, len(pcm))
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		scaled := int16(float64(sample) * volume)
		out[i] = byte(scaled)
		out[i+1] = byte(scaled >> 8)
	}
	return out
}

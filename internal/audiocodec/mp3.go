package audiocodec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	shine "github.com/braheezy/shine-mp3/pkg/mp3"
	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/shouni/vvspeak/pkg/voicevox"
)

// blockSamples is shine's required encode granularity: 1152 samples per
// channel per MP3 Layer III frame.
const blockSamples = 1152

// ToMP3 transcodes a WAV blob (as produced by the synthesis engine) into
// an MP3 byte stream using the pure-Go shine encoder, so CacheStore never
// needs an external LAME binary on the host. If wavBytes cannot be parsed
// as WAV, the original bytes are returned unchanged and ok is false — the
// caller then falls back to storing the original blob as-is.
func ToMP3(wavBytes []byte) (mp3Bytes []byte, ok bool) {
	info, pcm, err := ExtractPCM(wavBytes)
	if err != nil {
		return wavBytes, false
	}
	if info.BitsPerSample != 16 {
		return wavBytes, false
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}

	channels := int(info.NumChannels)
	if channels == 0 {
		channels = 1
	}
	blockSize := blockSamples * channels
	for len(samples)%blockSize != 0 {
		samples = append(samples, 0) // pad final block with silence
	}

	encoder := shine.NewEncoder(int(info.SampleRate), channels)
	var out bytes.Buffer
	for offset := 0; offset < len(samples); offset += blockSize {
		encoder.Write(&out, samples[offset:offset+blockSize])
	}
	return out.Bytes(), true
}

// FromMP3 decodes mp3Bytes into a WAV blob via go-mp3, which always
// decodes to signed 16-bit little-endian stereo PCM regardless of the
// source channel count.
func FromMP3(mp3Bytes []byte) ([]byte, error) {
	decoder, err := gomp3.NewDecoder(bytes.NewReader(mp3Bytes))
	if err != nil {
		return nil, fmt.Errorf("opening mp3 decoder: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("decoding mp3 stream: %w", err)
	}
	if len(pcm) == 0 {
		return nil, &voicevox.ErrNoAudioData{}
	}

	info := WAVFormat{
		AudioFormat:   1, // PCM
		NumChannels:   2,
		SampleRate:    uint32(decoder.SampleRate()),
		BitsPerSample: 16,
	}
	return BuildWAV(info, pcm), nil
}

// DecodePCM16 returns raw signed-16-bit-LE samples and the format info for
// any supported blob (WAV or MP3), sniffing the container first. Player
// uses this as its single entry point so it never needs to know which
// format a cached blob was stored in.
func DecodePCM16(blob []byte) (sampleRate int, channels int, pcm []byte, err error) {
	switch Sniff(blob) {
	case FormatWAV:
		info, data, err := ExtractPCM(blob)
		if err != nil {
			return 0, 0, nil, err
		}
		return int(info.SampleRate), int(info.NumChannels), data, nil
	case FormatMP3:
		wav, err := FromMP3(blob)
		if err != nil {
			return 0, 0, nil, err
		}
		info, data, err := ExtractPCM(wav)
		if err != nil {
			return 0, 0, nil, err
		}
		return int(info.SampleRate), int(info.NumChannels), data, nil
	default:
		return 0, 0, nil, &voicevox.ErrInvalidWAVHeader{Details: "unrecognized audio container"}
	}
}

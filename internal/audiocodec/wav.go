// Package audiocodec sniffs, decodes, and transcodes the two audio
// formats this tool ever handles: WAV (as returned by the synthesis
// engine) and MP3 (as persisted on disk by CacheStore).
package audiocodec

import (
	"encoding/binary"
	"fmt"

	"github.com/shouni/vvspeak/pkg/voicevox"
)

// WAV chunk layout constants, adapted from the engine client's own WAV
// combiner: RIFF/WAVE header (12 bytes) + fmt chunk (24 bytes) precede a
// dynamically located data chunk.
const (
	wavRiffHeaderSize  = 12 // "RIFF" + size(4) + "WAVE"
	wavFmtChunkSize    = 24 // "fmt " + size(4) + 16 bytes of format data
	dataChunkHeaderSize = 8  // chunk id (4) + chunk size (4)
	dataChunkIDSize     = 4

	riffChunkIDSize     = 4
	waveIDSize          = 4
	riffChunkSizeOffset = 4
	dataChunkOffset     = wavRiffHeaderSize + wavFmtChunkSize
	dataChunkSizeOffset = dataChunkOffset + dataChunkIDSize
	wavTotalHeaderSize  = dataChunkOffset + dataChunkHeaderSize
)

// Format identifies the sniffed container of an audio blob.
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatMP3
)

// Sniff identifies the format of data from its leading bytes: "RIFF....
// WAVE" is WAV; a byte 0xFF followed by a byte with its top three bits
// set is an MP3 frame sync.
func Sniff(data []byte) Format {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		return FormatWAV
	}
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return FormatMP3
	}
	return FormatUnknown
}

// WAVFormat is the parsed content of a WAV "fmt " sub-chunk, enough to
// drive both MP3 encoding and PCM playback.
type WAVFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// ExtractPCM parses wavBytes and returns the fmt-chunk info alongside the
// raw samples from the data chunk, walking past LIST/fact/etc chunks and
// honoring odd-length chunk padding exactly as the synthesis client's own
// WAV combiner does.
func ExtractPCM(wavBytes []byte) (WAVFormat, []byte, error) {
	if len(wavBytes) < dataChunkOffset {
		return WAVFormat{}, nil, &voicevox.ErrInvalidWAVHeader{
			Details: fmt.Sprintf("too short for a RIFF/fmt header: %d bytes", len(wavBytes)),
		}
	}
	if string(wavBytes[0:4]) != "RIFF" || string(wavBytes[8:12]) != "WAVE" {
		return WAVFormat{}, nil, &voicevox.ErrInvalidWAVHeader{Details: "missing RIFF/WAVE magic"}
	}

	fmtChunkData := wavBytes[wavRiffHeaderSize+8 : dataChunkOffset]
	info := WAVFormat{
		AudioFormat:   binary.LittleEndian.Uint16(fmtChunkData[0:2]),
		NumChannels:   binary.LittleEndian.Uint16(fmtChunkData[2:4]),
		SampleRate:    binary.LittleEndian.Uint32(fmtChunkData[4:8]),
		BitsPerSample: binary.LittleEndian.Uint16(fmtChunkData[14:16]),
	}

	offset := dataChunkOffset
	for offset < len(wavBytes) {
		if offset+dataChunkHeaderSize > len(wavBytes) {
			break
		}
		chunkID := string(wavBytes[offset : offset+dataChunkIDSize])
		chunkSize := binary.LittleEndian.Uint32(wavBytes[offset+dataChunkIDSize : offset+dataChunkHeaderSize])

		if chunkID == "data" {
			start := offset + dataChunkHeaderSize
			end := start + int(chunkSize)
			if end > len(wavBytes) {
				return WAVFormat{}, nil, &voicevox.ErrInvalidWAVHeader{
					Details: "data chunk declares more bytes than the file contains",
				}
			}
			return info, wavBytes[start:end], nil
		}

		offset += dataChunkHeaderSize + int(chunkSize)
		if chunkSize%2 != 0 {
			offset++ // odd-length chunks are padded to a 16-bit boundary
		}
	}

	return WAVFormat{}, nil, &voicevox.ErrInvalidWAVHeader{Details: "no 'data' chunk found"}
}

// BuildWAV assembles a minimal 44-byte-header WAV file around pcm, given
// the source format info.
func BuildWAV(info WAVFormat, pcm []byte) []byte {
	blockAlign := info.NumChannels * info.BitsPerSample / 8
	byteRate := info.SampleRate * uint32(blockAlign)

	out := make([]byte, wavTotalHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(wavTotalHeaderSize+len(pcm)-8))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], info.AudioFormat)
	binary.LittleEndian.PutUint16(out[22:24], info.NumChannels)
	binary.LittleEndian.PutUint32(out[24:28], info.SampleRate)
	binary.LittleEndian.PutUint32(out[28:32], byteRate)
	binary.LittleEndian.PutUint16(out[32:34], blockAlign)
	binary.LittleEndian.PutUint16(out[34:36], info.BitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[44:], pcm)
	return out
}

// CombineWAV concatenates the PCM payloads of several WAV blobs sharing
// the same format into one WAV file, taking the format header from the
// first blob. Used by the Orchestrator to assemble a --out artifact from
// already-cached segment bytes under --cache-only, where no further
// synthesis call is permitted; the ordinary --out path instead makes one
// independent whole-text synthesis call for a guaranteed-coherent
// artifact and never calls this.
func CombineWAV(wavBlobs [][]byte) ([]byte, error) {
	if len(wavBlobs) == 0 {
		return nil, &voicevox.ErrNoAudioData{}
	}

	info, first, err := ExtractPCM(wavBlobs[0])
	if err != nil {
		return nil, fmt.Errorf("parsing first WAV blob: %w", err)
	}

	total := make([]byte, 0, len(first)*len(wavBlobs))
	total = append(total, first...)
	for i := 1; i < len(wavBlobs); i++ {
		_, pcm, err := ExtractPCM(wavBlobs[i])
		if err != nil {
			return nil, fmt.Errorf("parsing WAV blob #%d: %w", i, err)
		}
		total = append(total, pcm...)
	}

	return BuildWAV(info, total), nil
}

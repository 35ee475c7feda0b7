package audiocodec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/vvspeak/internal/audiocodec"
)

func buildTestWAV(pcm []byte) []byte {
	header := []byte{
		'R', 'I', 'F', 'F', 0, 0, 0, 0, 'W', 'A', 'V', 'E',
		'f', 'm', 't', ' ', 16, 0, 0, 0,
		1, 0, // PCM
		1, 0, // mono
		0x80, 0x3E, 0, 0, // sample rate (little-endian)
		0, 0, 0, 0, // byte rate (unused by the parser)
		2, 0, // block align
		16, 0, // bits per sample
		'd', 'a', 't', 'a', 0, 0, 0, 0,
	}
	out := append(header, pcm...)

	fileSize := uint32(len(out) - 8)
	out[4], out[5], out[6], out[7] = byte(fileSize), byte(fileSize>>8), byte(fileSize>>16), byte(fileSize>>24)

	dataSize := uint32(len(pcm))
	out[40], out[41], out[42], out[43] = byte(dataSize), byte(dataSize>>8), byte(dataSize>>16), byte(dataSize>>24)
	return out
}

func TestSniff(t *testing.T) {
	wav := buildTestWAV([]byte{1, 2, 3, 4})
	assert.Equal(t, audiocodec.FormatWAV, audiocodec.Sniff(wav))

	mp3Frame := []byte{0xFF, 0xFB, 0x90, 0x00}
	assert.Equal(t, audiocodec.FormatMP3, audiocodec.Sniff(mp3Frame))

	assert.Equal(t, audiocodec.FormatUnknown, audiocodec.Sniff([]byte{0, 0, 0}))
}

func TestExtractPCM_RoundTrip(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	wav := buildTestWAV(pcm)

	info, extracted, err := audiocodec.ExtractPCM(wav)
	require.NoError(t, err)
	assert.Equal(t, pcm, extracted)
	assert.Equal(t, uint16(1), info.AudioFormat)
	assert.Equal(t, uint16(1), info.NumChannels)
}

func TestExtractPCM_TooShort(t *testing.T) {
	_, _, err := audiocodec.ExtractPCM([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestCombineWAV_ConcatenatesPCM(t *testing.T) {
	a := buildTestWAV([]byte{1, 0, 2, 0})
	b := buildTestWAV([]byte{3, 0, 4, 0})

	combined, err := audiocodec.CombineWAV([][]byte{a, b})
	require.NoError(t, err)

	_, pcm, err := audiocodec.ExtractPCM(combined)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 2, 0, 3, 0, 4, 0}, pcm)
}

func TestCombineWAV_EmptyIsError(t *testing.T) {
	_, err := audiocodec.CombineWAV(nil)
	require.Error(t, err)
}

package fingerprint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shouni/vvspeak/internal/fingerprint"
	"github.com/shouni/vvspeak/pkg/voicevox"
)

func TestKey_Deterministic(t *testing.T) {
	req := voicevox.NewVoiceRequest("ignored", 1)
	a := fingerprint.Key("こんにちは", req)
	b := fingerprint.Key("こんにちは", req)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestKey_ChangesWithEachParameter(t *testing.T) {
	base := voicevox.NewVoiceRequest("ignored", 1)
	baseKey := fingerprint.Key("テスト", base)

	variants := []voicevox.VoiceRequest{
		{SpeakerID: 2, Speed: base.Speed, Pitch: base.Pitch, Volume: base.Volume},
		{SpeakerID: base.SpeakerID, Speed: base.Speed + 0.01, Pitch: base.Pitch, Volume: base.Volume},
		{SpeakerID: base.SpeakerID, Speed: base.Speed, Pitch: base.Pitch + 0.01, Volume: base.Volume},
		{SpeakerID: base.SpeakerID, Speed: base.Speed, Pitch: base.Pitch, Volume: base.Volume + 0.01},
	}
	for _, v := range variants {
		assert.NotEqual(t, baseKey, fingerprint.Key("テスト", v))
	}
	assert.NotEqual(t, baseKey, fingerprint.Key("テスト2", base))
}

package voicevox

import "time"

// Default voice parameters, applied whenever a caller leaves them unset.
const (
	DefaultSpeed  = 1.0
	DefaultPitch  = 0.0
	DefaultVolume = 1.0
)

// VoiceRequest is an immutable carrier of one synthesis intent. Two
// VoiceRequests with byte-equal Text/SpeakerID and the same two-decimal
// rendering of Speed/Pitch/Volume are considered the same utterance by
// the fingerprinter.
type VoiceRequest struct {
	Text      string
	SpeakerID int
	Speed     float64
	Pitch     float64
	Volume    float64
}

// NewVoiceRequest fills in the documented defaults for any voice
// parameter the caller doesn't care to set explicitly.
func NewVoiceRequest(text string, speakerID int) VoiceRequest {
	return VoiceRequest{
		Text:      text,
		SpeakerID: speakerID,
		Speed:     DefaultSpeed,
		Pitch:     DefaultPitch,
		Volume:    DefaultVolume,
	}
}

// Speaker mirrors the /speakers response shape: {name, speaker_uuid,
// version, styles:[{name, id}]}. Field names are lower snake case on the
// wire, per the engine's documented protocol.
type Speaker struct {
	Name        string         `json:"name"`
	SpeakerUUID string         `json:"speaker_uuid"`
	Version     string         `json:"version"`
	Styles      []SpeakerStyle `json:"styles"`
}

// SpeakerStyle is one named voice style under a Speaker, e.g. "ノーマル".
type SpeakerStyle struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// Status is EngineSupervisor's process-wide view of the backend, written
// once at startup and read-only afterward.
type Status struct {
	Running     bool
	LastChecked time.Time
}

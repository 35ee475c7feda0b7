// Package fingerprint derives stable, content-addressed cache keys from a
// segment's text and voice parameters.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/shouni/vvspeak/pkg/voicevox"
)

// Key renders text and the voice parameters of req into a canonical
// string "text|speaker|speed|pitch|volume" — each numeric formatted to
// exactly two fractional digits with a period decimal separator,
// independent of host locale — then returns the lowercase hex SHA-256
// digest of that string. The digest is used verbatim as the cache
// filename stem.
func Key(text string, req voicevox.VoiceRequest) string {
	canonical := fmt.Sprintf("%s|%d|%.2f|%.2f|%.2f", text, req.SpeakerID, req.Speed, req.Pitch, req.Volume)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

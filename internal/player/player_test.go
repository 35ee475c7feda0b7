package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyGain_FullVolumeIsNoop(t *testing.T) {
	pcm := []byte{0x10, 0x20, 0x30, 0x40}
	out := applyGain(pcm, 1.0)
	assert.Equal(t, pcm, out)
}

func TestApplyGain_ZeroVolumeIsSilence(t *testing.T) {
	pcm := []byte{0x10, 0x20, 0x30, 0x40}
	out := applyGain(pcm, 0.0)
	assert.Equal(t, []byte{0, 0, 0, 0}, out)
}

func TestApplyGain_AboveOneIsClamped(t *testing.T) {
	pcm := []byte{0x10, 0x20}
	clamped := applyGain(pcm, 2.0)
	full := applyGain(pcm, 1.0)
	assert.Equal(t, full, clamped)
}

func TestApplyGain_NegativeIsClampedToZero(t *testing.T) {
	pcm := []byte{0x10, 0x20}
	out := applyGain(pcm, -1.0)
	assert.Equal(t, []byte{0, 0}, out)
}

// Package device enumerates audio output devices for the CLI's devices
// subcommand.
package device

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// Output describes one enumerated playback device.
type Output struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	ID    string `json:"id"`
}

// List returns every playback device the host audio backend reports,
// in backend enumeration order. Index corresponds to the value accepted
// by Audio.OutputDevice in configuration.
func List() ([]Output, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("device: failed to initialize audio backend: %w", err)
	}
	defer func() {
		ctx.Uninit()
		ctx.Free()
	}()

	playback, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("device: failed to enumerate playback devices: %w", err)
	}

	outputs := make([]Output, 0, len(playback))
	for i, dev := range playback {
		outputs = append(outputs, Output{
			Index: i,
			Name:  dev.Name(),
			ID:    idToString(dev.ID),
		})
	}
	return outputs, nil
}

func idToString(id malgo.DeviceID) string {
	n := 0
	for n < len(id) && id[n] != 0 {
		n++
	}
	return string(id[:n])
}

// Command vvspeak converts Japanese text to spoken audio through a local
// VOICEVOX engine, with a content-addressed cache for instant repeat
// playback.
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// SilenceErrors/SilenceUsage are set on every command so this is
		// the one place a fatal kind gets its human-readable line, per
		// the one-line-message-then-exit-1 contract.
		slog.Error(err.Error())
		os.Exit(1)
	}
}

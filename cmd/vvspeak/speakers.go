package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shouni/vvspeak/internal/config"
	"github.com/shouni/vvspeak/internal/engine"
	"github.com/shouni/vvspeak/pkg/voicevox"
)

func newSpeakersCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:           "speakers",
		Short:         "List speakers and styles known to the VOICEVOX engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			client := voicevox.NewClient(cfg.VoiceVox.BaseURL, cfg.VoiceVox.ConnectionTimeout)
			sup := engine.New(client, cfg.VoiceVox)
			if err := sup.Ensure(cmd.Context()); err != nil {
				return err
			}
			defer sup.Release()

			raw, err := client.Speakers(cmd.Context())
			if err != nil {
				return &voicevox.SynthError{Endpoint: "speakers", WrappedErr: err}
			}

			var speakers []voicevox.Speaker
			if err := json.Unmarshal(raw, &speakers); err != nil {
				return fmt.Errorf("speakers: malformed response: %w", err)
			}

			for _, s := range speakers {
				fmt.Printf("%s (%s)\n", s.Name, s.SpeakerUUID)
				for _, style := range s.Styles {
					fmt.Printf("  [%d] %s\n", style.ID, style.Name)
				}
			}
			return nil
		},
	}
}

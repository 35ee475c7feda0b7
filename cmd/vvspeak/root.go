package main

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/shouni/vvspeak/internal/cache"
	"github.com/shouni/vvspeak/internal/config"
	"github.com/shouni/vvspeak/internal/engine"
	"github.com/shouni/vvspeak/internal/filler"
	"github.com/shouni/vvspeak/internal/orchestrator"
	"github.com/shouni/vvspeak/internal/player"
	"github.com/shouni/vvspeak/pkg/voicevox"
)

// synthPacing is the minimum spacing between the background producer's
// segment synthesis attempts, so a cold engine right after auto-start
// isn't hammered.
const synthPacing = 200 * time.Millisecond

func newRootCmd() *cobra.Command {
	var (
		configPath string
		speaker    int
		speed      float64
		pitch      float64
		volume     float64
		noCache    bool
		cacheOnly  bool
		noPlay     bool
		verbose    bool
		doInit     bool
		doClear    bool
		outPath    string
	)

	cmd := &cobra.Command{
		Use:           "vvspeak [text]",
		Short:         "Convert Japanese text to spoken audio via a local VOICEVOX engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(verbose)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			client := voicevox.NewClient(cfg.VoiceVox.BaseURL, cfg.VoiceVox.ConnectionTimeout)

			cacheDir, err := config.ResolveDir(cfg.Cache.Directory, cfg.Cache.UseExecutableBaseDirectory)
			if err != nil {
				return err
			}
			fillerDir, err := config.ResolveDir(cfg.Filler.Directory, cfg.Cache.UseExecutableBaseDirectory)
			if err != nil {
				return err
			}

			audioCache, err := cache.New(cacheDir, cfg.Cache.ExpirationDays, cfg.Cache.MaxSizeGB)
			if err != nil {
				return err
			}
			fillerCache, err := cache.New(fillerDir, 0, cfg.Cache.MaxSizeGB)
			if err != nil {
				return err
			}

			if doClear {
				if err := audioCache.ClearAll(); err != nil {
					return err
				}
				if err := fillerCache.ClearAll(); err != nil {
					return err
				}
				audioCache.Sweep()
				slog.Info("cache cleared")
				return nil
			}

			sup := engine.New(client, cfg.VoiceVox)
			if err := sup.Ensure(cmd.Context()); err != nil {
				return err
			}
			defer sup.Release()

			if speaker < 0 {
				speaker = cfg.VoiceVox.DefaultSpeaker
			}

			bank := filler.New(fillerCache, cfg.Filler.FillerTexts, speaker)

			if doInit {
				if !cfg.Filler.Enabled {
					slog.Info("filler bank disabled in configuration, nothing to initialize")
					return nil
				}
				return bank.Init(cmd.Context(), client)
			}

			if !cfg.Filler.Enabled {
				bank = filler.New(fillerCache, nil, speaker)
			}

			text := strings.Join(args, " ")

			pl := player.New(player.Options{
				Volume:                cfg.Audio.Volume,
				PrepareDevice:         cfg.Audio.PrepareDevice,
				PreparationDurationMs: cfg.Audio.PreparationDurationMs,
				PreparationVolume:     cfg.Audio.PreparationVolume,
				DeviceIndex:           cfg.Audio.OutputDevice,
			})

			pacing := rate.NewLimiter(rate.Every(synthPacing), 1)
			orch := orchestrator.New(client, audioCache, bank, pl, pacing)

			opts := orchestrator.Options{
				Speaker:   speaker,
				Speed:     speed,
				Pitch:     pitch,
				Volume:    volume,
				NoCache:   noCache,
				CacheOnly: cacheOnly,
				NoPlay:    noPlay,
				OutPath:   outPath,
			}
			return orch.Run(cmd.Context(), text, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	cmd.Flags().IntVar(&speaker, "speaker", -1, "speaker id (default from configuration)")
	cmd.Flags().Float64Var(&speed, "speed", voicevox.DefaultSpeed, "speech speed scale")
	cmd.Flags().Float64Var(&pitch, "pitch", voicevox.DefaultPitch, "speech pitch scale")
	cmd.Flags().Float64Var(&volume, "volume", voicevox.DefaultVolume, "speech volume scale")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the cache and synthesize the whole text in one call")
	cmd.Flags().BoolVar(&cacheOnly, "cache-only", false, "fail instead of synthesizing any uncached segment")
	cmd.Flags().StringVar(&outPath, "out", "", "write the synthesized audio to this path (.mp3 or .wav)")
	cmd.Flags().BoolVar(&noPlay, "no-play", false, "do not play audio, only honor --out")
	cmd.Flags().BoolVar(&doInit, "init", false, "pre-synthesize the filler bank and exit")
	cmd.Flags().BoolVar(&doClear, "clear", false, "remove every cache entry in both cache directories and exit")

	cmd.AddCommand(newSpeakersCmd(&configPath))
	cmd.AddCommand(newDevicesCmd())

	return cmd
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

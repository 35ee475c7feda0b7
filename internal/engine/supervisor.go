// Package engine manages the lifecycle of the external synthesis engine
// process: detection, optional auto-start, health-probing, and optional
// shutdown at command end.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/shouni/vvspeak/internal/config"
	"github.com/shouni/vvspeak/pkg/voicevox"
)

// wellKnownInstallDirs is a closed list of candidate directories searched
// for the engine executable when VoiceVox.EnginePath is unset, per
// platform. Kept short and explicit rather than scanning $PATH, since the
// engine is a GUI-bundled desktop install on most hosts, not a package
// manager artifact.
var wellKnownInstallDirs = map[string][]string{
	"windows": {`C:\Program Files\VOICEVOX`, `C:\Program Files (x86)\VOICEVOX`},
	"darwin":  {"/Applications/VOICEVOX.app/Contents/MacOS"},
	"linux":   {"/opt/voicevox", "/usr/local/bin"},
}

func executableNameForOS() string {
	if runtime.GOOS == "windows" {
		return "VOICEVOX.exe"
	}
	return "voicevox"
}

// Supervisor owns the probe/spawn/poll/terminate lifecycle for one engine
// process across a single command invocation.
type Supervisor struct {
	client     *voicevox.Client
	cfg        config.VoiceVox
	spawnedPID int
	status     voicevox.Status
}

// New builds a Supervisor bound to client and the VoiceVox.* settings.
func New(client *voicevox.Client, cfg config.VoiceVox) *Supervisor {
	return &Supervisor{client: client, cfg: cfg}
}

// Status returns the process-wide, write-once view of the engine set by
// Ensure.
func (s *Supervisor) Status() voicevox.Status { return s.status }

// Ensure probes /version; if unreachable and AutoStartEngine is set, it
// resolves an executable, spawns it detached, and polls until ready or
// StartupTimeoutSeconds elapses. Returns EngineUnavailableError on total
// failure — no synthesis or playback is attempted past that point.
func (s *Supervisor) Ensure(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectionTimeout)
	_, err := s.client.Version(probeCtx)
	cancel()
	if err == nil {
		s.status = voicevox.Status{Running: true, LastChecked: time.Now().UTC()}
		return nil
	}

	if !s.cfg.AutoStartEngine {
		return &voicevox.EngineUnavailableError{BaseURL: s.cfg.BaseURL, Reason: "engine not reachable and auto-start is disabled"}
	}

	execPath, findErr := s.resolveExecutable()
	if findErr != nil {
		return &voicevox.EngineUnavailableError{BaseURL: s.cfg.BaseURL, Reason: findErr.Error()}
	}

	if err := s.spawn(execPath); err != nil {
		return &voicevox.EngineUnavailableError{BaseURL: s.cfg.BaseURL, Reason: fmt.Sprintf("failed to start engine: %v", err)}
	}

	if err := s.pollUntilReady(ctx); err != nil {
		return &voicevox.EngineUnavailableError{BaseURL: s.cfg.BaseURL, Reason: err.Error()}
	}

	s.status = voicevox.Status{Running: true, LastChecked: time.Now().UTC()}
	return nil
}

// Release terminates the engine child process if this Supervisor spawned
// it and KeepEngineRunning is false. A pre-existing engine (one this
// process never spawned) is never terminated.
func (s *Supervisor) Release() {
	if s.spawnedPID == 0 || s.cfg.KeepEngineRunning {
		return
	}
	proc, err := os.FindProcess(s.spawnedPID)
	if err != nil {
		return
	}
	if err := proc.Kill(); err != nil {
		slog.Warn("engine: failed to terminate spawned process", "pid", s.spawnedPID, "error", err)
	}
}

func (s *Supervisor) resolveExecutable() (string, error) {
	if s.cfg.EnginePath != "" {
		if _, err := os.Stat(s.cfg.EnginePath); err == nil {
			return s.cfg.EnginePath, nil
		}
		return "", fmt.Errorf("configured VoiceVox.EnginePath %q does not exist", s.cfg.EnginePath)
	}

	name := executableNameForOS()
	for _, dir := range wellKnownInstallDirs[runtime.GOOS] {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no engine executable configured and none found in well-known install locations")
}

func (s *Supervisor) spawn(execPath string) error {
	cmd := exec.Command(execPath, s.cfg.EngineArguments...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	if err := cmd.Start(); err != nil {
		return err
	}
	s.spawnedPID = cmd.Process.Pid
	slog.Info("engine: spawned detached engine process", "pid", s.spawnedPID, "path", execPath)
	return nil
}

// pollUntilReady polls /version at a fixed short interval, bounded by
// StartupTimeoutSeconds, using an exponential backoff with a low cap so
// the interval stays effectively fixed-short while still yielding to
// cancellation promptly.
func (s *Supervisor) pollUntilReady(ctx context.Context) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.StartupTimeoutSeconds)*time.Second)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.Multiplier = 1.2
	b.MaxElapsedTime = time.Duration(s.cfg.StartupTimeoutSeconds) * time.Second

	operation := func() error {
		probeCtx, probeCancel := context.WithTimeout(timeoutCtx, s.cfg.ConnectionTimeout)
		defer probeCancel()
		_, err := s.client.Version(probeCtx)
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(b, timeoutCtx))
}

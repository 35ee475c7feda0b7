// Package cache implements the content-addressed audio cache: payload +
// sidecar pairs on disk, expiration, and size-bounded eviction.
package cache

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/shouni/vvspeak/internal/audiocodec"
)

// Entry is the sidecar metadata stored alongside every cached payload.
type Entry struct {
	CreatedAt time.Time `json:"CreatedAt"`
	Text      string    `json:"Text"`
	SpeakerID int       `json:"SpeakerId"`
	Speed     float64   `json:"Speed"`
	Pitch     float64   `json:"Pitch"`
	Volume    float64   `json:"Volume"`
}

// Store owns one cache directory — audio cache and filler bank are two
// independent Store instances so the filler directory is never swept by
// the utterance cache's eviction policy.
type Store struct {
	dir            string
	expirationDays int
	maxSizeBytes   int64
}

// New creates a Store rooted at dir, creating the directory if needed.
// expirationDays <= 0 disables expiration (used by the filler bank, whose
// entries never expire) and maxSizeGB <= 0 disables the size cap.
func New(dir string, expirationDays int, maxSizeGB float64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{
		dir:            dir,
		expirationDays: expirationDays,
		maxSizeBytes:   int64(maxSizeGB * (1 << 30)),
	}, nil
}

func (s *Store) payloadPath(key string) string { return filepath.Join(s.dir, key+".mp3") }
func (s *Store) sidecarPath(key string) string { return filepath.Join(s.dir, key+".meta.json") }

// Get returns the cached payload for key if both files exist, the sidecar
// parses, and it has not expired. Any failure is treated as corruption:
// both files are removed and the call downgrades to a miss.
func (s *Store) Get(key string) ([]byte, bool) {
	payloadPath := s.payloadPath(key)
	sidecarPath := s.sidecarPath(key)

	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		s.evictCorrupt(key)
		return nil, false
	}

	sidecarBytes, err := os.ReadFile(sidecarPath)
	if err != nil {
		s.evictCorrupt(key)
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(sidecarBytes, &entry); err != nil {
		s.evictCorrupt(key)
		return nil, false
	}

	if s.expirationDays > 0 && time.Since(entry.CreatedAt) > time.Duration(s.expirationDays)*24*time.Hour {
		s.evictCorrupt(key)
		return nil, false
	}

	return payload, true
}

// Put persists bytes under key with the given metadata: payload first via
// temp-then-rename, then the sidecar the same way, so a crash between the
// two leaves an orphaned payload the next Get treats as corrupt rather
// than a half-written file. WAV bytes are transcoded to MP3 first; bytes
// that are not WAV, or WAV that fails to transcode, are stored unchanged
// (per the open encoder question in the design notes).
//
// I/O errors here are logged and swallowed: caching is best-effort and an
// utterance must never fail because a disk write failed.
func (s *Store) Put(key string, bytes []byte, meta Entry) {
	payload := bytes
	if audiocodec.Sniff(bytes) == audiocodec.FormatWAV {
		if transcoded, ok := audiocodec.ToMP3(bytes); ok {
			payload = transcoded
		}
	}

	if err := s.atomicWrite(s.payloadPath(key), payload); err != nil {
		slog.Warn("cache: failed to write payload", "key", key, "error", err)
		return
	}

	meta.CreatedAt = time.Now().UTC()
	sidecarBytes, err := json.Marshal(meta)
	if err != nil {
		slog.Warn("cache: failed to marshal sidecar", "key", key, "error", err)
		return
	}
	if err := s.atomicWrite(s.sidecarPath(key), sidecarBytes); err != nil {
		slog.Warn("cache: failed to write sidecar", "key", key, "error", err)
		return
	}

	s.sweep()
}

// ClearAll removes every payload/sidecar pair under the cache directory.
func (s *Store) ClearAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) == ".mp3" || hasMetaSuffix(name) {
			if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
				slog.Warn("cache: failed to remove during clear", "file", name, "error", err)
			}
		}
	}
	return nil
}

// sweep walks every sidecar, deletes expired pairs, then — if the total
// payload size still exceeds the cap — deletes pairs oldest-created-first
// until under the cap. Runs opportunistically after Put and explicitly on
// --clear.
func (s *Store) sweep() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}

	type keyed struct {
		key       string
		createdAt time.Time
		size      int64
	}
	var live []keyed
	var totalSize int64

	for _, e := range entries {
		name := e.Name()
		if !hasMetaSuffix(name) {
			continue
		}
		key := name[:len(name)-len(".meta.json")]

		sidecarBytes, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		var meta Entry
		if err := json.Unmarshal(sidecarBytes, &meta); err != nil {
			s.evictCorrupt(key)
			continue
		}

		if s.expirationDays > 0 && time.Since(meta.CreatedAt) > time.Duration(s.expirationDays)*24*time.Hour {
			s.evictCorrupt(key)
			continue
		}

		info, err := os.Stat(s.payloadPath(key))
		if err != nil {
			s.evictCorrupt(key)
			continue
		}

		live = append(live, keyed{key: key, createdAt: meta.CreatedAt, size: info.Size()})
		totalSize += info.Size()
	}

	if s.maxSizeBytes <= 0 || totalSize <= s.maxSizeBytes {
		return
	}

	sort.Slice(live, func(i, j int) bool { return live[i].createdAt.Before(live[j].createdAt) })
	for _, entry := range live {
		if totalSize <= s.maxSizeBytes {
			break
		}
		s.evictCorrupt(entry.key)
		totalSize -= entry.size
	}
}

func (s *Store) evictCorrupt(key string) {
	_ = os.Remove(s.payloadPath(key))
	_ = os.Remove(s.sidecarPath(key))
}

func (s *Store) atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func hasMetaSuffix(name string) bool {
	const suffix = ".meta.json"
	return len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix
}

// Sweep exposes the maintenance pass for explicit --clear invocations and
// tests; Put already triggers it opportunistically.
func (s *Store) Sweep() { s.sweep() }

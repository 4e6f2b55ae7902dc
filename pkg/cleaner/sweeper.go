// Package cleaner reclaims abandoned uploads. It is deliberately age-based:
// correctness only requires eventual reclamation, not immediacy.
package cleaner

import (
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/robfig/cron/v3"
)

const DefaultMaxAge = time.Hour

// SessionSweeper is what the upload manager exposes for stale-session
// eviction.
type SessionSweeper interface {
	SweepStale(maxAge time.Duration) int
}

type Sweeper struct {
	tmpDir   string
	maxAge   time.Duration
	sessions SessionSweeper
	cron     *cron.Cron
}

func NewSweeper(tmpDir string, maxAge time.Duration, sessions SessionSweeper) *Sweeper {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	return &Sweeper{
		tmpDir:   tmpDir,
		maxAge:   maxAge,
		sessions: sessions,
	}
}

// Start schedules the hourly sweep. Stop with Stop.
func (s *Sweeper) Start() {
	s.cron = cron.New()
	_, _ = s.cron.AddFunc("@hourly", func() {
		s.Sweep()
	})
	s.cron.Start()
}

func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Sweep runs one pass: old temp files first, then stale sessions. Returns
// the number of files removed.
func (s *Sweeper) Sweep() int {
	removed := s.sweepTempFiles()

	if s.sessions != nil {
		if evicted := s.sessions.SweepStale(s.maxAge); evicted > 0 {
			log.Infof("evicted %d stale upload sessions", evicted)
		}
	}

	return removed
}

func (s *Sweeper) sweepTempFiles() int {
	entries, err := os.ReadDir(s.tmpDir)
	if err != nil {
		log.Errorf("sweeping %s: %s", s.tmpDir, err)
		return 0
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.tmpDir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.Errorf("removing stale temp file %s: %s", path, err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		log.Infof("removed %d stale temp files from %s", removed, s.tmpDir)
	}

	return removed
}

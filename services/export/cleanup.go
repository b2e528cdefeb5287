package exportsvc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/hocsinh/core"
)

const (
	removeAttempts = 5
	removeBackoff  = 2 * time.Second
)

// RemoveFile deletes `path`, retrying with doubling backoff. A missing file is not an error.
func RemoveFile(path string, attempts int, backoff time.Duration, stop <-chan struct{}) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = os.Remove(path); err == nil || os.IsNotExist(err) {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-stop:
			return errors.Wrapf(err, "removing %s (interrupted)", filepath.Base(path))
		}
	}
	return errors.Wrapf(err, "removing %s after %d attempts", filepath.Base(path), attempts)
}

// Cleaner deletes downloaded export files once their delay has elapsed.
type Cleaner struct {
	delay   time.Duration
	backoff time.Duration
	logger  core.Logger

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

func NewCleaner(delay time.Duration, logger core.Logger) *Cleaner {
	return &Cleaner{delay: delay, backoff: removeBackoff, logger: logger, stop: make(chan struct{})}
}

// Schedule removes `path` after the cleaner's delay, in the background.
func (c *Cleaner) Schedule(path string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-time.After(c.delay):
		case <-c.stop:
			return
		}
		if err := RemoveFile(path, removeAttempts, c.backoff, c.stop); err != nil {
			c.logger.Warn(fmt.Sprintf("cleanup: %v", err))
			return
		}
		c.logger.Debug("cleanup: removed " + filepath.Base(path))
	}()
}

// Stop abandons pending removals and waits for running ones. The sweeper collects leftovers.
func (c *Cleaner) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
}

// Sweeper periodically removes stale export files left behind by interrupted cleanups.
type Sweeper struct {
	dir    string
	maxAge time.Duration
	cron   *cron.Cron
	logger core.Logger
}

func NewSweeper(conf *core.Config, logger core.Logger) *Sweeper {
	return &Sweeper{
		dir:    conf.Export.Dir,
		maxAge: conf.Export.MaxAge,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		logger: logger,
	}
}

// Start registers the sweep on `schedule` (cron spec or `@every 2m`) and starts the scheduler.
func (s *Sweeper) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		n, err := s.Sweep()
		if err != nil {
			s.logger.Error(fmt.Sprintf("sweeping exports: %v", err), err)
		}
		if n > 0 {
			s.logger.Info(fmt.Sprintf("sweep: removed %d stale export files", n))
		}
	})
	if err != nil {
		return errors.Wrapf(err, "scheduling sweeper (%s)", schedule)
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running sweep.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep removes the export files older than the max age and returns how many it removed.
func (s *Sweeper) Sweep() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "reading export directory")
	}

	cutoff := NowFunc().Add(-s.maxAge)
	var removed int
	for _, e := range entries {
		if e.IsDir() || !isExportFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err = RemoveFile(filepath.Join(s.dir, e.Name()), 1, 0, nil); err != nil {
			s.logger.Warn(fmt.Sprintf("sweep: %v", err))
			continue
		}
		removed++
	}
	return removed, nil
}

func isExportFile(name string) bool {
	if !strings.HasPrefix(name, filePrefix) {
		return false
	}
	switch filepath.Ext(name) {
	case "." + FormatXLSX, "." + FormatCSV, "." + FormatJSON:
		return true
	}
	return false
}

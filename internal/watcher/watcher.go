// Package watcher converts files as they land in a directory. FunASR result
// JSON is always handled; audio is transcribed when a backend is
// configured. fsnotify drives the loop and a directory poll takes over when
// fsnotify is unavailable.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tiroq/asrsub/internal/diaglog"
	"github.com/tiroq/asrsub/internal/fileutil"
	"github.com/tiroq/asrsub/internal/ipc"
	"github.com/tiroq/asrsub/internal/pipeline"
)

// Config configures a Watcher.
type Config struct {
	Dir             string
	AudioExtensions []string      // without the dot
	Debounce        time.Duration // quiet period after the last write
	PollInterval    time.Duration // polling fallback scan interval
	ForcePolling    bool
	ScanExisting    bool // convert inputs without a sidecar on start

	// ReadCommands polls ipc.CommandPath every CommandInterval.
	ReadCommands    bool
	CommandInterval time.Duration
}

var (
	errFallback = errors.New("fsnotify unavailable")
	errQuit     = errors.New("quit requested")
)

type inputKind int

const (
	kindNone inputKind = iota
	kindResult
	kindAudio
)

// Watcher processes new inputs in Config.Dir one at a time.
type Watcher struct {
	cfg      Config
	runner   *pipeline.Runner
	audioExt map[string]bool
	cmds     chan ipc.Command

	mu       sync.Mutex
	status   ipc.StatusSnapshot
	mode     ipc.WatchState // watching or polling while not paused
	paused   bool
	done     map[string]time.Time // path -> mod time last processed
	onStatus func(ipc.StatusSnapshot)

	logger   *diaglog.Logger
	loggerMu sync.RWMutex
}

// New creates a Watcher. Nothing happens until Run.
func New(cfg Config, runner *pipeline.Runner) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.CommandInterval <= 0 {
		cfg.CommandInterval = time.Second
	}
	exts := make(map[string]bool, len(cfg.AudioExtensions))
	for _, e := range cfg.AudioExtensions {
		exts["."+strings.TrimPrefix(strings.ToLower(e), ".")] = true
	}
	return &Watcher{
		cfg:      cfg,
		runner:   runner,
		audioExt: exts,
		cmds:     make(chan ipc.Command, 8),
		done:     make(map[string]time.Time),
		mode:     ipc.StateWatching,
		status: ipc.StatusSnapshot{
			State:    ipc.StateStopped,
			PID:      os.Getpid(),
			WatchDir: cfg.Dir,
		},
	}
}

// SetLogger injects a diaglog.Logger for debug logging.
func (w *Watcher) SetLogger(l *diaglog.Logger) {
	w.loggerMu.Lock()
	w.logger = l
	w.loggerMu.Unlock()
}

func (w *Watcher) log(entry diaglog.LogEntry) {
	w.loggerMu.RLock()
	l := w.logger
	w.loggerMu.RUnlock()
	if l == nil {
		return
	}
	if entry.Component == "" {
		entry.Component = diaglog.ComponentWatcher
	}
	l.Log(entry)
}

// OnStatus registers fn to receive a snapshot after every change.
func (w *Watcher) OnStatus(fn func(ipc.StatusSnapshot)) {
	w.mu.Lock()
	w.onStatus = fn
	w.mu.Unlock()
}

// Status returns the current snapshot.
func (w *Watcher) Status() ipc.StatusSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.status
	s.Timestamp = time.Now()
	return s
}

// Send queues a control command for the running loop.
func (w *Watcher) Send(cmd ipc.Command) {
	w.cmds <- cmd
}

// Run watches until ctx is cancelled or a quit command arrives.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch dir: %s is not a directory", w.cfg.Dir)
	}

	w.update(func(s *ipc.StatusSnapshot) { s.StartedAt = time.Now() })
	w.log(diaglog.LogEntry{
		Event:   diaglog.EventWatchStart,
		Payload: map[string]interface{}{"dir": w.cfg.Dir, "audio": w.runner.CanTranscribe()},
	})

	if w.cfg.ScanExisting {
		w.Rescan(ctx)
	}

	err = errFallback
	if !w.cfg.ForcePolling {
		err = w.runNotify(ctx)
	}
	if errors.Is(err, errFallback) {
		w.log(diaglog.LogEntry{Event: diaglog.EventWatchPolling, Reason: "fsnotify_unavailable"})
		err = w.runPolling(ctx)
	}

	w.update(func(s *ipc.StatusSnapshot) { s.State = ipc.StateStopped })
	w.log(diaglog.LogEntry{Event: diaglog.EventWatchStop})

	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runNotify is the fsnotify loop. It returns errFallback when fsnotify can
// not be used so Run can switch to polling.
func (w *Watcher) runNotify(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errFallback
	}
	defer fw.Close()

	if err := fw.Add(w.cfg.Dir); err != nil {
		return errFallback
	}
	w.setMode(ipc.StateWatching)

	stop := make(chan struct{})
	defer close(stop)

	ready := make(chan string, 16)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	cmdTick, stopCmd := w.commandTicker()
	defer stopCmd()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return errFallback
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if w.kind(event.Name) == kindNone {
				continue
			}
			// Restart the quiet period on every write.
			if t, ok := timers[event.Name]; ok {
				t.Reset(w.cfg.Debounce)
				continue
			}
			name := event.Name
			timers[name] = time.AfterFunc(w.cfg.Debounce, func() {
				select {
				case ready <- name:
				case <-stop:
				}
			})

		case name := <-ready:
			delete(timers, name)
			w.process(ctx, name, false)

		case err, ok := <-fw.Errors:
			if !ok {
				return errFallback
			}
			w.log(diaglog.LogEntry{Event: diaglog.EventFileFailed, Reason: "fsnotify_error", Error: err.Error()})

		case cmd := <-w.cmds:
			if w.handle(ctx, cmd) {
				return errQuit
			}

		case <-cmdTick:
			if w.pollCommand(ctx) {
				return errQuit
			}
		}
	}
}

// fileStamp identifies one version of a file for the polling loop.
type fileStamp struct {
	size int64
	mod  time.Time
}

// runPolling scans the directory every PollInterval. A file is processed
// once it is unchanged across two scans.
func (w *Watcher) runPolling(ctx context.Context) error {
	seen := make(map[string]fileStamp)
	// Files present at start are the baseline, Rescan handles those.
	for path, st := range w.scan() {
		seen[path] = st
		w.markDone(path, st.mod)
	}
	w.setMode(ipc.StatePolling)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	cmdTick, stopCmd := w.commandTicker()
	defer stopCmd()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			current := w.scan()
			for path, st := range current {
				if prev, ok := seen[path]; ok && prev == st {
					w.process(ctx, path, false)
				}
			}
			seen = current

		case cmd := <-w.cmds:
			if w.handle(ctx, cmd) {
				return errQuit
			}

		case <-cmdTick:
			if w.pollCommand(ctx) {
				return errQuit
			}
		}
	}
}

// Rescan processes every input in the directory that has no sidecar yet.
func (w *Watcher) Rescan(ctx context.Context) {
	for path := range w.scan() {
		if ctx.Err() != nil {
			return
		}
		if _, err := os.Stat(fileutil.MetadataPath(w.runner.Base(path))); err == nil {
			continue
		}
		w.process(ctx, path, true)
	}
}

// scan lists the eligible inputs in the watch directory.
func (w *Watcher) scan() map[string]fileStamp {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		w.log(diaglog.LogEntry{Event: diaglog.EventFileFailed, Reason: "scan_failed", Error: err.Error()})
		return nil
	}
	out := make(map[string]fileStamp, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.cfg.Dir, e.Name())
		if w.kind(path) == kindNone {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out[path] = fileStamp{size: info.Size(), mod: info.ModTime()}
	}
	return out
}

func (w *Watcher) kind(path string) inputKind {
	if fileutil.IsOutputFile(path) {
		return kindNone
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".json":
		return kindResult
	case w.audioExt[ext] && w.runner.CanTranscribe():
		return kindAudio
	}
	return kindNone
}

// process converts one input. force skips the pause and duplicate checks.
func (w *Watcher) process(ctx context.Context, path string, force bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	if !force && w.isPaused() {
		return
	}
	if !w.claim(path, info.ModTime(), force) {
		return
	}
	w.log(diaglog.LogEntry{Event: diaglog.EventFileDetected, Payload: map[string]interface{}{"file": path}})

	var (
		reports []*pipeline.Report
		procErr error
	)
	switch w.kind(path) {
	case kindResult:
		reports, procErr = w.runner.Convert(path)
	case kindAudio:
		var rep *pipeline.Report
		rep, procErr = w.runner.Transcribe(ctx, path)
		if rep != nil {
			reports = append(reports, rep)
		}
	default:
		return
	}

	if procErr != nil && ctx.Err() != nil {
		// Interrupted by shutdown, leave it for the next run.
		w.unclaim(path)
		return
	}

	w.update(func(s *ipc.StatusSnapshot) {
		s.LastFile = path
		if procErr != nil {
			s.Failed++
			s.LastError = procErr.Error()
			return
		}
		s.Processed++
		for _, r := range reports {
			if !r.SubtitleOK() {
				s.SubtitleFailures++
				s.LastError = r.Output.SubtitleErr.Error()
			}
			if r.WriteErr != nil {
				s.LastError = r.WriteErr.Error()
			}
		}
	})
}

// handle applies a control command and reports whether the loop should exit.
func (w *Watcher) handle(ctx context.Context, cmd ipc.Command) bool {
	w.log(diaglog.LogEntry{Event: diaglog.EventCommand, Reason: string(cmd)})
	switch cmd {
	case ipc.CmdPause:
		w.setPaused(true)
	case ipc.CmdResume:
		w.setPaused(false)
	case ipc.CmdRescan:
		w.Rescan(ctx)
	case ipc.CmdQuit:
		return true
	}
	return false
}

func (w *Watcher) pollCommand(ctx context.Context) bool {
	cmd, err := ipc.ReadCommand()
	if err != nil || cmd == "" {
		return false
	}
	return w.handle(ctx, cmd)
}

func (w *Watcher) commandTicker() (<-chan time.Time, func()) {
	if !w.cfg.ReadCommands {
		return nil, func() {}
	}
	t := time.NewTicker(w.cfg.CommandInterval)
	return t.C, t.Stop
}

// ── state ────────────────────────────────────────────────────────────────────

func (w *Watcher) claim(path string, mod time.Time, force bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if last, ok := w.done[path]; ok && !force && !mod.After(last) {
		return false
	}
	w.done[path] = mod
	return true
}

func (w *Watcher) unclaim(path string) {
	w.mu.Lock()
	delete(w.done, path)
	w.mu.Unlock()
}

func (w *Watcher) markDone(path string, mod time.Time) {
	w.mu.Lock()
	w.done[path] = mod
	w.mu.Unlock()
}

func (w *Watcher) isPaused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

func (w *Watcher) setPaused(paused bool) {
	w.update(func(s *ipc.StatusSnapshot) {
		w.paused = paused
		if paused {
			s.State = ipc.StatePaused
		} else {
			s.State = w.mode
		}
	})
}

func (w *Watcher) setMode(mode ipc.WatchState) {
	w.update(func(s *ipc.StatusSnapshot) {
		w.mode = mode
		if !w.paused {
			s.State = mode
		}
	})
}

// update mutates the snapshot under the lock and publishes the result.
func (w *Watcher) update(fn func(*ipc.StatusSnapshot)) {
	w.mu.Lock()
	fn(&w.status)
	w.status.Timestamp = time.Now()
	snap := w.status
	cb := w.onStatus
	w.mu.Unlock()

	if cb != nil {
		cb(snap)
	}
}

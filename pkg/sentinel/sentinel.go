package sentinel

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// GracePeriod is the time to wait after SIGTERM before sending SIGKILL.
	GracePeriod = 10 * time.Second

	// InitialBackoff is the initial delay before restarting after an abnormal exit.
	InitialBackoff = 5 * time.Second

	// MaxBackoff is the maximum delay between restarts.
	MaxBackoff = 10 * time.Minute

	// BackoffFactor is the multiplier for each successive backoff.
	BackoffFactor = 2.0

	// SuccessRunTime is how long the child must run before backoff resets.
	SuccessRunTime = 30 * time.Second

	// DebounceInterval is the delay after an fsnotify event before checking the checksum.
	DebounceInterval = 100 * time.Millisecond
)

// Sentinel supervises the server child process: it restarts the child on
// crash with exponential backoff and swaps it out when the binary on disk
// is replaced by a deploy.
type Sentinel struct {
	binaryPath string
	childArg   string
	lastHash   [sha256.Size]byte
	backoff    time.Duration
	stopCh     chan struct{}
}

// Run blocks until SIGINT/SIGTERM, supervising a child started from the
// current executable with childArg as its subcommand.
func Run(childArg string) {
	binaryPath, err := os.Executable()
	if err != nil {
		slog.Error("failed to resolve executable path", "error", err)
		os.Exit(1)
	}
	// Watch the real file location, deploys often replace a symlink target.
	binaryPath, err = filepath.EvalSymlinks(binaryPath)
	if err != nil {
		slog.Error("failed to resolve binary symlinks", "error", err)
		os.Exit(1)
	}

	s := &Sentinel{
		binaryPath: binaryPath,
		childArg:   childArg,
		backoff:    InitialBackoff,
		stopCh:     make(chan struct{}),
	}
	s.lastHash, err = HashFile(binaryPath)
	if err != nil {
		slog.Error("failed to hash binary", "error", err)
		os.Exit(1)
	}
	slog.Info("starting sentinel", "binary", binaryPath, "hash", fmt.Sprintf("%x", s.lastHash[:8]))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	updateCh := make(chan struct{}, 1)
	go s.watchBinary(updateCh)

	s.mainLoop(sigCh, updateCh)
}

func (s *Sentinel) mainLoop(sigCh <-chan os.Signal, updateCh <-chan struct{}) {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		child, err := s.startChild()
		if err != nil {
			slog.Error("failed to start child", "error", err)
			s.sleepBackoff()
			s.increaseBackoff()
			continue
		}
		startTime := time.Now()

		childDone := make(chan error, 1)
		go func() { childDone <- child.Wait() }()

		select {
		case err := <-childDone:
			elapsed := time.Since(startTime)
			if err != nil {
				slog.Error("child exited with error", "elapsed", elapsed, "error", err)
				if elapsed >= SuccessRunTime {
					s.backoff = InitialBackoff
				}
				s.sleepBackoff()
				s.increaseBackoff()
			} else {
				// The serve subcommand normally runs forever, so a clean
				// exit still warrants a restart.
				slog.Info("child exited cleanly", "elapsed", elapsed)
				s.backoff = InitialBackoff
				time.Sleep(time.Second)
			}

		case <-updateCh:
			slog.Info("binary update detected, restarting child")
			s.stopChild(child)
			<-childDone
			if h, err := HashFile(s.binaryPath); err == nil {
				s.lastHash = h
			}
			s.backoff = InitialBackoff

		case sig := <-sigCh:
			slog.Info("forwarding signal to child and shutting down", "signal", sig.String())
			s.stopChild(child)
			<-childDone
			close(s.stopCh)
			return
		}
	}
}

func (s *Sentinel) startChild() (*exec.Cmd, error) {
	cmd := exec.Command(s.binaryPath, s.childArg)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("exec %s %s: %w", s.binaryPath, s.childArg, err)
	}
	slog.Info("started child process", "pid", cmd.Process.Pid)
	return cmd, nil
}

// stopChild sends SIGTERM and schedules a SIGKILL after the grace period.
// The caller drains the child's Wait result.
func (s *Sentinel) stopChild(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return
	}
	go func() {
		time.Sleep(GracePeriod)
		if err := cmd.Process.Signal(syscall.Signal(0)); err == nil {
			slog.Warn("grace period expired, killing child", "pid", cmd.Process.Pid)
			_ = cmd.Process.Kill()
		}
	}()
}

// watchBinary watches the binary's parent directory: atomic deploys replace
// the file by rename, which changes the inode, so watching the file itself
// would miss them. Events are debounced and confirmed by checksum.
func (s *Sentinel) watchBinary(updateCh chan<- struct{}) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("failed to create binary watcher", "error", err)
		return
	}
	defer watcher.Close()

	binaryName := filepath.Base(s.binaryPath)
	if err := watcher.Add(filepath.Dir(s.binaryPath)); err != nil {
		slog.Error("failed to watch binary directory", "error", err)
		return
	}

	var debounceTimer *time.Timer
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != binaryName {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(DebounceInterval, func() {
				newHash, err := HashFile(s.binaryPath)
				if err != nil {
					return
				}
				if newHash != s.lastHash {
					select {
					case updateCh <- struct{}{}:
					default:
					}
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("binary watcher error", "error", err)

		case <-s.stopCh:
			return
		}
	}
}

// HashFile computes the SHA256 hash of the file at the given path.
func HashFile(path string) ([sha256.Size]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("hash %s: %w", path, err)
	}

	var result [sha256.Size]byte
	copy(result[:], h.Sum(nil))
	return result, nil
}

func (s *Sentinel) sleepBackoff() {
	select {
	case <-time.After(s.backoff):
	case <-s.stopCh:
	}
}

func (s *Sentinel) increaseBackoff() {
	s.backoff = time.Duration(float64(s.backoff) * BackoffFactor)
	if s.backoff > MaxBackoff {
		s.backoff = MaxBackoff
	}
}

package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sergeknystautas/landed/internal/config"
	"github.com/sergeknystautas/landed/internal/dashboard"
	"github.com/sergeknystautas/landed/internal/hosting"
	"github.com/sergeknystautas/landed/internal/inclusion"
)

const (
	pidFileName     = "daemon.pid"
	startedFileName = "daemon.started"
)

var (
	shutdownChan = make(chan struct{})
	shutdownOnce sync.Once
)

// Daemon represents the landed daemon: the API server plus the engine it
// serves, rebuilt whenever the config file changes.
type Daemon struct {
	configPath string
	provider   *config.Provider
	server     *dashboard.Server

	mu     sync.Mutex
	config *config.Config
}

// New wires a daemon around a loaded config.
func New(cfg *config.Config) *Daemon {
	provider := config.NewProvider(cfg)
	return &Daemon{
		configPath: cfg.Path(),
		provider:   provider,
		server:     dashboard.NewServer(cfg, NewEngine(cfg, provider), provider),
		config:     cfg,
	}
}

// NewEngine builds the inclusion engine for cfg.
func NewEngine(cfg *config.Config, provider inclusion.CredentialsProvider) *inclusion.Engine {
	return inclusion.NewEngineFromAPI(hosting.NewAPI(nil), provider, cfg.InclusionSettings())
}

// reload re-reads the config file and swaps in a fresh engine. A config that
// fails to load leaves the running one in place.
func (d *Daemon) reload() error {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		fmt.Printf("[daemon] config reload failed, keeping previous config: %v\n", err)
		return err
	}

	d.mu.Lock()
	prev := d.config
	d.config = cfg
	d.mu.Unlock()

	if prev.GetPort() != cfg.GetPort() || prev.GetBindAddress() != cfg.GetBindAddress() {
		fmt.Println("[daemon] network settings changed; restart the daemon to apply them")
	}

	d.provider.SetConfig(cfg)
	d.server.Update(cfg, NewEngine(cfg, d.provider))
	fmt.Printf("[daemon] config reloaded (%d project(s), max_concurrency=%d)\n", len(cfg.Projects), cfg.GetMaxConcurrency())
	return nil
}

func stateDir() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create landed directory: %w", err)
	}
	return dir, nil
}

// readPID parses a PID file.
func readPID(pidFile string) (int, error) {
	pidData, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err != nil {
		return 0, fmt.Errorf("failed to parse PID: %w", err)
	}
	return pid, nil
}

// processAlive reports whether pid is a running process.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// ValidateReadyToRun checks that the daemon has a usable config.
func ValidateReadyToRun() error {
	configPath, err := config.DefaultPath()
	if err != nil {
		return err
	}
	if _, err := config.Load(configPath); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// Start starts the daemon in the background.
func Start() error {
	if err := ValidateReadyToRun(); err != nil {
		return err
	}

	dir, err := stateDir()
	if err != nil {
		return err
	}
	pidFile := filepath.Join(dir, pidFileName)

	// Check if already running
	if pid, err := readPID(pidFile); err == nil {
		if processAlive(pid) {
			return fmt.Errorf("daemon is already running (PID %d)", pid)
		}
		// Process not running, remove stale PID file
		os.Remove(pidFile)
	}

	// Get the path to the current executable
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	// Start daemon in background
	cmd := exec.Command(execPath, "daemon-run")
	cmd.Dir, _ = os.Getwd()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Wait a bit for daemon to start
	time.Sleep(100 * time.Millisecond)

	return nil
}

// Stop stops the daemon.
func Stop() error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}

	pid, err := readPID(filepath.Join(dir, pidFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("daemon is not running")
		}
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	// Send SIGTERM
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	// Wait for process to exit by polling (process.Wait() doesn't work for non-child processes)
	// Check every 100ms, up to 5 seconds
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("timeout waiting for daemon to stop")
}

// Status returns the status of the daemon.
func Status() (running bool, url string, startedAt string, err error) {
	dir, err := config.Dir()
	if err != nil {
		return false, "", "", err
	}

	pid, err := readPID(filepath.Join(dir, pidFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return false, "", "", nil
		}
		return false, "", "", fmt.Errorf("failed to read PID file: %w", err)
	}

	if !processAlive(pid) {
		return false, "", "", nil
	}

	port := config.DefaultPort
	if configPath, err := config.DefaultPath(); err == nil {
		if cfg, err := config.Load(configPath); err == nil {
			port = cfg.GetPort()
		}
	}
	url = fmt.Sprintf("http://localhost:%d", port)
	if startedData, err := os.ReadFile(filepath.Join(dir, startedFileName)); err == nil {
		startedAt = strings.TrimSpace(string(startedData))
	}
	return true, url, startedAt, nil
}

// Run runs the daemon (this is the entry point for the daemon process).
func Run() error {
	dir, err := stateDir()
	if err != nil {
		return err
	}

	pidFile := filepath.Join(dir, pidFileName)
	startedFile := filepath.Join(dir, startedFileName)

	// Write PID file
	pid := os.Getpid()
	if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", pid)), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer os.Remove(pidFile)

	// Record daemon start time
	startedAt := time.Now().UTC().Format(time.RFC3339Nano)
	if err := os.WriteFile(startedFile, []byte(startedAt+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write daemon start time: %w", err)
	}

	if err := config.LoadEnv(); err != nil {
		fmt.Printf("[daemon] %v\n", err)
	}

	configPath, err := config.DefaultPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	d := New(cfg)

	watcher, err := config.NewWatcher(configPath, config.DefaultWatchDebounce, func() { d.reload() })
	if err != nil {
		fmt.Printf("[daemon] config watching disabled: %v\n", err)
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start API server in background
	serverErrChan := make(chan error, 1)
	go func() {
		if err := d.server.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		fmt.Printf("[daemon] received signal %v, shutting down...\n", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("dashboard server error: %w", err)
	case <-shutdownChan:
		fmt.Println("[daemon] shutdown requested")
	}

	if err := d.server.Stop(); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	return nil
}

// Shutdown triggers a graceful shutdown.
func Shutdown() {
	shutdownOnce.Do(func() { close(shutdownChan) })
}

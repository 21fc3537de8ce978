package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"grabit/internal/api"
	"grabit/internal/config"
	"grabit/internal/ipc"
	"grabit/internal/preflight"
)

const pollInterval = 200 * time.Millisecond

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
}

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Launch starts a detached daemon process via the serve subcommand.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("empty executable path")
	}

	argv := []string{"serve"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		argv = append(argv, "--socket", socket)
	}
	if cfgPath := strings.TrimSpace(opts.ConfigPath); cfgPath != "" {
		argv = append(argv, "--config", cfgPath)
	}

	proc := exec.Command(executablePath, argv...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("spawn daemon process: %w", err)
	}
	return proc.Process.Release()
}

// poll runs probe every pollInterval until it reports done or the timeout
// elapses. The final probe error flavors the returned timeout error.
func poll(timeout time.Duration, probe func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		done, err := probe()
		if done {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		if !time.Now().Before(deadline) {
			break
		}
		time.Sleep(pollInterval)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for daemon")
	}
	return lastErr
}

// probeRunning reports whether the daemon answers status with Running set.
func probeRunning(socketPath string) (bool, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		return false, err
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return false, err
	}
	if status == nil || !status.Running {
		return false, errors.New("daemon not running yet")
	}
	return true, nil
}

// WaitForRunning polls daemon status until it reports running or the
// timeout elapses.
func WaitForRunning(socketPath string, timeout time.Duration) error {
	err := poll(timeout, func() (bool, error) {
		return probeRunning(socketPath)
	})
	if err != nil {
		return fmt.Errorf("daemon failed to start: %w", err)
	}
	return nil
}

// WaitForShutdown waits for daemon IPC to disappear or report not-running.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	err := poll(timeout, func() (bool, error) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			if isDaemonUnavailable(err) {
				return true, nil
			}
			return false, err
		}
		status, statusErr := client.Status()
		_ = client.Close()
		if statusErr != nil {
			return false, statusErr
		}
		if status != nil && status.Running {
			return false, errors.New("daemon still running")
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("daemon did not stop: %w", err)
	}
	return nil
}

// EnsureStarted launches the daemon process if needed and waits until it
// reports running. The serve process starts itself, so there is no
// separate start RPC to issue.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if running, dialErr := daemonAnswering(socketPath); dialErr == nil {
		if running {
			return StartResult{State: StartStateAlreadyRunning}, nil
		}
		// Socket answers but the daemon is still warming up.
		if err := WaitForRunning(socketPath, waitTimeout); err != nil {
			return StartResult{}, err
		}
		return StartResult{State: StartStateStarted}, nil
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	if err := WaitForRunning(socketPath, waitTimeout); err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, Launched: true}, nil
}

// daemonAnswering reports whether anything accepts the control socket and,
// if so, whether it already claims to be running.
func daemonAnswering(socketPath string) (bool, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		return false, err
	}
	defer client.Close()
	status, statusErr := client.Status()
	return statusErr == nil && status != nil && status.Running, nil
}

// ProcessInfo reports whether daemon IPC is reachable and the daemon PID
// when available.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return true, 0, err
	}
	if status == nil {
		return true, 0, nil
	}
	return true, status.PID, nil
}

// DeriveStateDir determines the daemon state directory from status and
// config hints, preferring paths the running daemon reported itself.
func DeriveStateDir(lockPath, historyDBPath string, cfg *config.Config) string {
	switch {
	case lockPath != "":
		return filepath.Dir(lockPath)
	case historyDBPath != "":
		return filepath.Dir(historyDBPath)
	case cfg != nil && strings.TrimSpace(cfg.Paths.StateDir) != "":
		return cfg.Paths.StateDir
	}
	return ""
}

func readPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, nil
	}
	return pid, nil
}

// ForceKillProcess sends SIGKILL to the daemon process and cleans up the
// pid and lock files. The pid file wins over fallbackPID when both exist.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid, err := readPidFile(pidPath)
	if err != nil {
		return 0, err
	}
	if pid <= 0 {
		pid = fallbackPID
	}
	if pid <= 0 {
		return 0, fmt.Errorf("no usable daemon pid (pid file %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("pid %d is this process, refusing to kill it", pid)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("delete pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// StopAndTerminate requests a graceful stop over IPC and force-kills the
// process if it is still alive after gracePeriod.
func StopAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}

	lockPath, historyDBPath, pid := statusPaths(client)
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	outcome := StopResult{PID: pid}
	if resp != nil {
		outcome.StopAcknowledged = resp.Stopping
	}

	_ = WaitForShutdown(socketPath, gracePeriod)
	alive, livePID, aliveErr := ProcessInfo(socketPath)
	if aliveErr != nil {
		alive = false
	}
	if !alive {
		return outcome, nil
	}

	if livePID == 0 {
		livePID = pid
	}
	stateDir := DeriveStateDir(lockPath, historyDBPath, cfg)
	if stateDir == "" {
		return outcome, fmt.Errorf("cannot locate daemon state directory")
	}
	killedPID, killErr := ForceKillProcess(
		filepath.Join(stateDir, "grabit.pid"),
		filepath.Join(stateDir, "grabit.lock"),
		livePID,
	)
	if killErr != nil {
		return outcome, fmt.Errorf("force kill: %w", killErr)
	}
	_ = os.Remove(socketPath)
	outcome.ForcedKill = true
	outcome.PID = killedPID
	return outcome, nil
}

// statusPaths grabs the state-file hints a later force kill may need while
// the daemon can still answer.
func statusPaths(client *ipc.Client) (lockPath, historyDBPath string, pid int) {
	status, err := client.Status()
	if err != nil || status == nil {
		return "", "", 0
	}
	return status.LockPath, status.HistoryDBPath, status.PID
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(socketPath string, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(socketPath, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(socketPath, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

func isDaemonUnavailable(err error) bool {
	for _, sentinel := range []error{os.ErrNotExist, syscall.ENOENT, syscall.ECONNREFUSED} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return os.IsNotExist(err)
}

// StatusLine is a labeled severity line rendered by the status command.
type StatusLine struct {
	Label    string
	Severity string
	Detail   string
}

// DependencySummary aggregates external tool readiness.
type DependencySummary struct {
	Total           int
	Available       int
	MissingRequired int
	MissingOptional int
	Severity        string
	Detail          string
}

// Snapshot bundles daemon status with derived check lines for rendering.
type Snapshot struct {
	Status            *ipc.StatusResponse
	SystemChecks      []StatusLine
	StoragePaths      []StatusLine
	DependencySummary DependencySummary
}

// BuildStatusSnapshot collects daemon status and applies offline fallbacks
// for dependency availability when the daemon is unreachable.
func BuildStatusSnapshot(socketPath string, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("no configuration available")
	}

	statusResp := &ipc.StatusResponse{}
	if client, err := ipc.Dial(socketPath); err == nil {
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			statusResp = resp
		}
		_ = client.Close()
	}

	if len(statusResp.Dependencies) == 0 {
		statusResp.Dependencies = ResolveDependencies(cfg)
	}

	return &Snapshot{
		Status:            statusResp,
		SystemChecks:      BuildSystemChecks(cfg, statusResp),
		StoragePaths:      BuildStoragePathChecks(cfg),
		DependencySummary: BuildDependencySummary(statusResp.Dependencies),
	}, nil
}

// ResolveDependencies returns current dependency availability for status
// output when no daemon answer is available.
func ResolveDependencies(cfg *config.Config) []ipc.DependencyStatus {
	if cfg == nil {
		return nil
	}
	return api.FromDependencies(preflight.CheckSystemDeps(cfg))
}

// BuildSystemChecks resolves status lines that combine runtime state and
// config checks.
func BuildSystemChecks(cfg *config.Config, status *ipc.StatusResponse) []StatusLine {
	lines := make([]StatusLine, 0, 5)
	running := status != nil && status.Running
	if running {
		detail := "Running"
		if status.BindAddress != "" {
			detail = fmt.Sprintf("Running (API on %s)", status.BindAddress)
		}
		lines = append(lines, StatusLine{Label: "Grabit", Severity: "ok", Detail: detail})
		active := fmt.Sprintf("%d active, %d total downloads", status.ActiveDownloads, status.TotalDownloads)
		lines = append(lines, StatusLine{Label: "Downloads", Severity: "info", Detail: active})
		conns := fmt.Sprintf("%d connected (%d max)", status.Connections.Active, status.Connections.Max)
		lines = append(lines, StatusLine{Label: "WebSocket", Severity: "info", Detail: conns})
	} else {
		lines = append(lines, StatusLine{Label: "Grabit", Severity: "warn", Detail: "Not running (run `grabit start`)"})
	}

	if free, _, err := preflight.DiskSpace(cfg.Paths.DownloadDir); err == nil {
		severity := "ok"
		if free < 500 {
			severity = "warn"
		}
		lines = append(lines, StatusLine{Label: "Disk space", Severity: severity, Detail: fmt.Sprintf("%d MB free", free)})
	} else {
		lines = append(lines, StatusLine{Label: "Disk space", Severity: "warn", Detail: "Unknown"})
	}

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "ok", Detail: "Configured"})
	} else {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "info", Detail: "Not configured"})
	}

	if cfg.History.Enabled {
		detail := "Enabled"
		if status != nil && status.HistoryCount > 0 {
			detail = fmt.Sprintf("Enabled (%d entries)", status.HistoryCount)
		}
		lines = append(lines, StatusLine{Label: "History", Severity: "ok", Detail: detail})
	} else {
		lines = append(lines, StatusLine{Label: "History", Severity: "info", Detail: "Disabled"})
	}

	return lines
}

// BuildStoragePathChecks resolves configured directory readiness.
func BuildStoragePathChecks(cfg *config.Config) []StatusLine {
	dirs := []struct {
		label, path string
	}{
		{"Downloads", cfg.Paths.DownloadDir},
		{"Temp", cfg.Paths.TempDir},
		{"Logs", cfg.Paths.LogDir},
		{"State", cfg.Paths.StateDir},
	}
	lines := make([]StatusLine, 0, len(dirs))
	for _, dir := range dirs {
		check := preflight.CheckDirectoryAccess(dir.label, dir.path)
		line := StatusLine{Label: dir.label, Severity: "error", Detail: check.Detail}
		if check.Passed {
			line.Severity = "ok"
		}
		lines = append(lines, line)
	}
	return lines
}

// BuildDependencySummary computes aggregate dependency readiness.
func BuildDependencySummary(deps []ipc.DependencyStatus) DependencySummary {
	if len(deps) == 0 {
		return DependencySummary{Severity: "info", Detail: "No dependency checks ran"}
	}

	summary := DependencySummary{Total: len(deps)}
	for _, dep := range deps {
		switch {
		case dep.Available:
			summary.Available++
		case dep.Optional:
			summary.MissingOptional++
		default:
			summary.MissingRequired++
		}
	}
	switch {
	case summary.MissingRequired > 0:
		summary.Severity = "error"
	case summary.MissingOptional > 0:
		summary.Severity = "warn"
	default:
		summary.Severity = "ok"
	}
	if summary.Available == summary.Total {
		summary.Detail = fmt.Sprintf("%d/%d available", summary.Available, summary.Total)
	} else {
		summary.Detail = fmt.Sprintf("%d/%d available (missing: %d required, %d optional)",
			summary.Available, summary.Total, summary.MissingRequired, summary.MissingOptional)
	}
	return summary
}

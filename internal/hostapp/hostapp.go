// Package hostapp asks the host habit application to refresh its own data.
// A running instance is discovered through its lockfile and messaged over
// HTTP; when none is running the executable is launched with the refresh
// action on its command line.
package hostapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"
	"github.com/spf13/afero"

	"github.com/julianstephens/habitrefresh/internal/constants"
	"github.com/julianstephens/habitrefresh/internal/logger"
)

var (
	userConfigDirFunc = os.UserConfigDir
	findProcessFunc   = ps.FindProcess
	startFunc         = startDetached
)

// ErrNotRunning means no live host instance matches the lockfile
var ErrNotRunning = errors.New("host application is not running")

// RefreshRequest is the body posted to a running host instance
type RefreshRequest struct {
	Action          string    `json:"action"`
	MidnightRefresh bool      `json:"midnight_refresh"`
	RequestedAt     time.Time `json:"requested_at"`
}

// Instance is a validated running host application
type Instance struct {
	Port   int
	PID    int
	Secret string
}

type Options struct {
	Fs           afero.Fs
	LockfilePath string
	Executable   string
	ProcessName  string
}

type Trigger struct {
	fs           afero.Fs
	lockfilePath string
	executable   string
	processName  string
	client       *http.Client
}

func New(opts Options) *Trigger {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Executable == "" {
		opts.Executable = constants.DefaultHostExecutable
	}
	if opts.ProcessName == "" {
		opts.ProcessName = constants.HostProcessNamePrefix
	}
	return &Trigger{
		fs:           opts.Fs,
		lockfilePath: opts.LockfilePath,
		executable:   opts.Executable,
		processName:  opts.ProcessName,
		client:       &http.Client{Timeout: constants.HostRequestTimeout},
	}
}

// LockfilePath returns the configured lockfile, or the host's default
// location under the user config directory.
func (t *Trigger) LockfilePath() (string, error) {
	if t.lockfilePath != "" {
		return t.lockfilePath, nil
	}
	configDir, err := userConfigDirFunc()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	return filepath.Join(configDir, constants.HostAppIdentifier, constants.HostLockfileName), nil
}

// RequestRefresh delivers the refresh action. It returns once the request is
// handed off; it does not wait for the host to finish.
func (t *Trigger) RequestRefresh(ctx context.Context) error {
	inst, err := t.Running()
	if err == nil {
		logger.Debug("messaging running host application", "pid", inst.PID, "port", inst.Port)
		return t.send(ctx, inst, RefreshRequest{
			Action:          constants.HostRefreshAction,
			MidnightRefresh: true,
			RequestedAt:     time.Now().UTC(),
		})
	}

	logger.Debug("host application not reachable, launching", "reason", err, "executable", t.executable)
	args := []string{"--action", constants.HostRefreshAction, constants.HostMidnightRefreshArg}
	if err := startFunc(t.executable, args...); err != nil {
		return fmt.Errorf("failed to launch %s: %w", t.executable, err)
	}
	return nil
}

// Running reads the lockfile and confirms the recorded PID belongs to the
// host application.
func (t *Trigger) Running() (Instance, error) {
	path, err := t.LockfilePath()
	if err != nil {
		return Instance{}, err
	}

	content, err := afero.ReadFile(t.fs, path)
	if err != nil {
		return Instance{}, ErrNotRunning
	}

	inst, err := parseLockfile(string(content))
	if err != nil {
		return Instance{}, err
	}

	process, err := findProcessFunc(inst.PID)
	if err != nil || process == nil {
		return Instance{}, ErrNotRunning
	}
	if !strings.HasPrefix(process.Executable(), t.processName) {
		return Instance{}, fmt.Errorf("%w: PID %d is %s", ErrNotRunning, inst.PID, process.Executable())
	}
	return inst, nil
}

// parseLockfile decodes "port|pid|secret"
func parseLockfile(content string) (Instance, error) {
	parts := strings.Split(strings.TrimSpace(content), "|")
	if len(parts) != 3 {
		return Instance{}, errors.New("lockfile is malformed")
	}

	port, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Instance{}, errors.New("invalid port number in lockfile")
	}
	if port < 1 || port > 65535 {
		return Instance{}, fmt.Errorf("port number %d is outside valid range (1-65535)", port)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Instance{}, errors.New("invalid process ID in lockfile")
	}

	secret := strings.TrimSpace(parts[2])
	if secret == "" {
		return Instance{}, errors.New("secret in lockfile is empty")
	}

	return Instance{Port: port, PID: pid, Secret: secret}, nil
}

func (t *Trigger) send(ctx context.Context, inst Instance, payload RefreshRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://127.0.0.1:%d", inst.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(constants.HostSecretHeader, inst.Secret)

	res, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach host application: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return fmt.Errorf("host refresh failed with status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

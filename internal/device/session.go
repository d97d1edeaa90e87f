// Package device tracks a connection to a headset through the device bridge
// and exposes the remote operations the capture tools are built from.
package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/questcap/internal/bridge"
	"github.com/bryanchriswhite/questcap/internal/logger"
)

const (
	// DefaultRemoteDir is where temporary captures are written on the headset.
	DefaultRemoteDir = "/sdcard"

	// MaxRecordSeconds is the longest recording screenrecord accepts.
	MaxRecordSeconds = 180

	cleanupTimeout = 10 * time.Second
)

var sizePattern = regexp.MustCompile(`(\d+)x(\d+)`)

// Options configures a Session.
type Options struct {
	Target    Target
	Retry     RetryPolicy
	RemoteDir string
}

// Session is one connection to a capture-capable device.
type Session struct {
	id        string
	target    Target
	runner    bridge.Runner
	retry     RetryPolicy
	remoteDir string
	selector  string
	connected atomic.Bool

	sleep func(ctx context.Context, d time.Duration) error
}

// NewSession creates a disconnected session that issues commands through runner.
func NewSession(runner bridge.Runner, opts Options) *Session {
	retry := opts.Retry
	if retry.Attempts <= 0 {
		retry.Attempts = DefaultRetryPolicy().Attempts
	}
	if retry.Interval < 0 {
		retry.Interval = 0
	}
	remoteDir := opts.RemoteDir
	if remoteDir == "" {
		remoteDir = DefaultRemoteDir
	}

	return &Session{
		id:        uuid.NewString(),
		target:    opts.Target,
		runner:    runner,
		retry:     retry,
		remoteDir: remoteDir,
		selector:  opts.Target.Serial,
		sleep:     sleepContext,
	}
}

// ID returns the session identifier used in logs and remote temp file names.
func (s *Session) ID() string {
	return s.id
}

// Target returns the connection parameters the session was created with.
func (s *Session) Target() Target {
	return s.target
}

// Connected reports whether the bridge handshake succeeded.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

func (s *Session) log() *zerolog.Logger {
	l := logger.WithComponent("device").With().
		Str("session", s.id[:8]).
		Str("target", s.target.String()).
		Logger()
	return &l
}

// CheckBridge verifies the bridge executable can be run.
func (s *Session) CheckBridge(ctx context.Context) error {
	res, err := s.runner.Run(ctx, "version")
	if err != nil {
		return fmt.Errorf("%w (%v)", ErrBridgeMissing, err)
	}
	if !res.OK() {
		return fmt.Errorf("%w (%v)", ErrBridgeMissing, newCommandError(res))
	}
	s.log().Debug().Str("version", firstLine(res.Output())).Msg("Bridge available")
	return nil
}

// Connect performs the bridge handshake. Network targets issue a connect
// command; USB targets poll the device list within the retry budget.
func (s *Session) Connect(ctx context.Context) error {
	if s.target.IsNetwork() {
		return s.connectNetwork(ctx)
	}
	return s.connectUSB(ctx)
}

func (s *Session) connectNetwork(ctx context.Context) error {
	addr := s.target.Address()
	s.log().Info().Msgf("Connecting to %s", addr)

	res, err := s.runner.Run(ctx, "connect", addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}

	out := res.Output()
	if !strings.Contains(strings.ToLower(out), "connected") {
		return fmt.Errorf("%w at %s: %s", ErrNoDevice, addr, out)
	}

	s.selector = addr
	s.connected.Store(true)
	s.log().Info().Msg("Connected over the network")
	return nil
}

func (s *Session) connectUSB(ctx context.Context) error {
	log := s.log()

	for attempt := 1; attempt <= s.retry.Attempts; attempt++ {
		res, err := s.runner.Run(ctx, "devices")
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}

		devices := readyDevices(res.Output(), s.target.Serial)
		if len(devices) > 0 {
			log.Info().Strs("devices", devices).Msgf("Found %d device(s)", len(devices))
			s.connected.Store(true)
			return nil
		}

		if attempt == s.retry.Attempts {
			break
		}

		log.Warn().
			Int("attempt", attempt).
			Int("max_attempts", s.retry.Attempts).
			Dur("retry_in", s.retry.Interval).
			Msg("No devices found; make sure the headset is connected and developer mode is enabled")

		if err := s.sleep(ctx, s.retry.Interval); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts: check the USB cable, enable developer mode and accept the USB debugging prompt in the headset",
		ErrNoDevice, s.retry.Attempts)
}

// readyDevices returns serials whose status is "device". When serial is set
// only that device counts.
func readyDevices(out, serial string) []string {
	var devices []string
	for _, line := range strings.Split(out, "\n") {
		id, rest, ok := strings.Cut(strings.TrimSpace(line), "\t")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 || fields[0] != "device" {
			continue
		}
		if serial != "" && id != serial {
			continue
		}
		devices = append(devices, id)
	}
	return devices
}

// QueryInfo reads model, OS version and display size. A failing query
// leaves its field empty.
func (s *Session) QueryInfo(ctx context.Context) (*Info, error) {
	if !s.Connected() {
		return nil, ErrNotConnected
	}

	info := &Info{
		Model:      s.query(ctx, "shell", "getprop", "ro.product.model"),
		OSVersion:  s.query(ctx, "shell", "getprop", "ro.build.version.release"),
		Resolution: s.query(ctx, "shell", "wm", "size"),
	}

	if m := sizePattern.FindStringSubmatch(info.Resolution); m != nil {
		info.Width, _ = strconv.Atoi(m[1])
		info.Height, _ = strconv.Atoi(m[2])
	}

	return info, nil
}

func (s *Session) query(ctx context.Context, args ...string) string {
	if err := ctx.Err(); err != nil {
		return ""
	}
	res, err := s.runner.Run(ctx, s.deviceArgs(args...)...)
	if err != nil {
		s.log().Debug().Err(err).Strs("args", args).Msg("Device query failed")
		return ""
	}
	if !res.OK() {
		s.log().Debug().Err(newCommandError(res)).Msg("Device query failed")
		return ""
	}
	return res.Output()
}

// CaptureStill takes a screenshot on the device and pulls it to localPath.
// The remote file is removed on every path.
func (s *Session) CaptureStill(ctx context.Context, localPath string) error {
	if !s.Connected() {
		return ErrNotConnected
	}

	remote := s.remotePath("screenshot.png")
	defer s.removeRemote(ctx, remote)

	if err := s.run(ctx, "shell", "screencap", "-p", remote); err != nil {
		return fmt.Errorf("%w: screenshot: %w", ErrCaptureFailed, err)
	}
	if err := s.pull(ctx, remote, localPath); err != nil {
		return fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}

	s.log().Info().Str("path", localPath).Msg("Screenshot saved")
	return nil
}

// CaptureStillBytes returns one PNG screenshot streamed straight from the
// device. The bytes may carry line-ending translation from the shell transport.
func (s *Session) CaptureStillBytes(ctx context.Context) ([]byte, error) {
	if !s.Connected() {
		return nil, ErrNotConnected
	}

	res, err := s.runner.Run(ctx, s.deviceArgs("shell", "screencap", "-p")...)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, newCommandError(res))
	}
	return res.Stdout, nil
}

// CaptureFrame is CaptureStill without the per-call remote cleanup. The
// live stream reuses one remote file and calls CleanupRemote when it stops.
func (s *Session) CaptureFrame(ctx context.Context, localPath string) error {
	if !s.Connected() {
		return ErrNotConnected
	}

	remote := s.remotePath("frame.png")
	if err := s.run(ctx, "shell", "screencap", "-p", remote); err != nil {
		return fmt.Errorf("%w: frame: %w", ErrCaptureFailed, err)
	}
	if err := s.pull(ctx, remote, localPath); err != nil {
		return fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	return nil
}

// CaptureVideo records the screen for seconds, blocks until the recording
// ends, and pulls it to localPath.
func (s *Session) CaptureVideo(ctx context.Context, seconds int, localPath string) error {
	if !s.Connected() {
		return ErrNotConnected
	}
	if seconds <= 0 || seconds > MaxRecordSeconds {
		return fmt.Errorf("recording duration must be between 1 and %d seconds, got %d", MaxRecordSeconds, seconds)
	}

	remote := s.remotePath("recording.mp4")
	defer s.removeRemote(ctx, remote)

	s.log().Info().Int("seconds", seconds).Msg("Recording")
	if err := s.run(ctx, "shell", "screenrecord", "--time-limit="+strconv.Itoa(seconds), remote); err != nil {
		return fmt.Errorf("%w: screenrecord: %w", ErrCaptureFailed, err)
	}

	s.log().Info().Msg("Recording complete, downloading")
	if err := s.pull(ctx, remote, localPath); err != nil {
		return fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}

	s.log().Info().Str("path", localPath).Msg("Recording saved")
	return nil
}

// CleanupRemote removes every temp file this session may have left on the device.
func (s *Session) CleanupRemote(ctx context.Context) {
	s.removeRemote(ctx,
		s.remotePath("screenshot.png"),
		s.remotePath("recording.mp4"),
		s.remotePath("frame.png"),
	)
}

// Disconnect tears the session down. It never fails; the connected flag is
// cleared even when the disconnect command does not succeed.
func (s *Session) Disconnect(ctx context.Context) {
	defer s.connected.Store(false)

	if !s.target.IsNetwork() {
		return
	}

	addr := s.target.Address()
	res, err := s.runner.Run(ctx, "disconnect", addr)
	switch {
	case err != nil:
		s.log().Warn().Err(err).Msg("Disconnect failed")
	case !res.OK():
		s.log().Warn().Err(newCommandError(res)).Msg("Disconnect failed")
	default:
		s.log().Info().Msg("Disconnected from device")
	}
}

func (s *Session) remotePath(name string) string {
	return path.Join(s.remoteDir, "questcap_"+s.id[:8]+"_"+name)
}

func (s *Session) deviceArgs(args ...string) []string {
	if s.selector == "" {
		return args
	}
	return append([]string{"-s", s.selector}, args...)
}

// run executes a device command, turning a non-zero exit into a CommandError.
func (s *Session) run(ctx context.Context, args ...string) error {
	res, err := s.runner.Run(ctx, s.deviceArgs(args...)...)
	if err != nil {
		return err
	}
	if !res.OK() {
		return newCommandError(res)
	}
	return nil
}

func (s *Session) pull(ctx context.Context, remote, local string) error {
	if err := s.run(ctx, "pull", remote, local); err != nil {
		if rmErr := os.Remove(local); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.log().Warn().Err(rmErr).Str("path", local).Msg("Failed to remove partial file")
		}
		return fmt.Errorf("pull %s: %w", remote, err)
	}
	return nil
}

// removeRemote deletes remote files. It runs even when ctx is already
// cancelled and only logs failures.
func (s *Session) removeRemote(ctx context.Context, remotes ...string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	args := append([]string{"shell", "rm", "-f"}, remotes...)
	if err := s.run(cleanupCtx, args...); err != nil {
		s.log().Debug().Err(err).Strs("remote", remotes).Msg("Remote cleanup failed")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}

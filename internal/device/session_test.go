package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bryanchriswhite/questcap/internal/bridge"
)

// fakeRunner records bridge invocations and answers them through handle.
type fakeRunner struct {
	mu     sync.Mutex
	calls  [][]string
	handle func(args []string) (*bridge.Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) (*bridge.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	f.mu.Unlock()

	if f.handle == nil {
		return ok(args, ""), nil
	}
	return f.handle(args)
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, strings.Join(c, " "))
	}
	return out
}

func (f *fakeRunner) count(prefix string) int {
	n := 0
	for _, c := range f.commands() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func ok(args []string, stdout string) *bridge.Result {
	return &bridge.Result{Args: args, Stdout: []byte(stdout)}
}

func exit(args []string, code int) *bridge.Result {
	return &bridge.Result{Args: args, ExitCode: code, Stderr: []byte("error: device offline")}
}

func has(args []string, word string) bool {
	for _, a := range args {
		if a == word {
			return true
		}
	}
	return false
}

func connectedSession(r bridge.Runner) *Session {
	s := NewSession(r, Options{})
	s.connected.Store(true)
	return s
}

func TestConnectUSB_FindsDevice(t *testing.T) {
	r := &fakeRunner{handle: func(args []string) (*bridge.Result, error) {
		return ok(args, "List of devices attached\n1WMHH000000000\tdevice\n"), nil
	}}
	s := NewSession(r, Options{})

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !s.Connected() {
		t.Error("session should be connected")
	}
	if got := r.count("devices"); got != 1 {
		t.Errorf("devices called %d times, want 1", got)
	}
}

func TestConnectUSB_ExhaustsRetryBudget(t *testing.T) {
	r := &fakeRunner{handle: func(args []string) (*bridge.Result, error) {
		return ok(args, "List of devices attached\n\n"), nil
	}}
	s := NewSession(r, Options{Retry: DefaultRetryPolicy()})

	var waits []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	err := s.Connect(context.Background())
	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
	if s.Connected() {
		t.Error("session should not be connected")
	}
	if got := r.count("devices"); got != 3 {
		t.Errorf("devices called %d times, want 3", got)
	}
	// Two waits between three attempts: 10s total, under 20s.
	if len(waits) != 2 {
		t.Fatalf("expected 2 waits, got %d", len(waits))
	}
	for i, w := range waits {
		if w != 5*time.Second {
			t.Errorf("wait %d = %v, want 5s", i, w)
		}
	}
}

func TestConnectUSB_RetrySpacingRealClock(t *testing.T) {
	r := &fakeRunner{handle: func(args []string) (*bridge.Result, error) {
		return ok(args, "List of devices attached\n"), nil
	}}
	interval := 20 * time.Millisecond
	s := NewSession(r, Options{Retry: RetryPolicy{Attempts: 3, Interval: interval}})

	start := time.Now()
	err := s.Connect(context.Background())
	elapsed := time.Since(start)

	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
	if elapsed < 2*interval {
		t.Errorf("elapsed %v, want at least %v", elapsed, 2*interval)
	}
	if elapsed >= 4*interval+time.Second {
		t.Errorf("elapsed %v is far beyond the retry budget", elapsed)
	}
}

func TestConnectUSB_CancelDuringWait(t *testing.T) {
	r := &fakeRunner{handle: func(args []string) (*bridge.Result, error) {
		return ok(args, "List of devices attached\n"), nil
	}}
	s := NewSession(r, Options{Retry: RetryPolicy{Attempts: 3, Interval: time.Hour}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := s.Connect(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestConnectUSB_IgnoresUnauthorizedAndOtherSerials(t *testing.T) {
	out := "List of devices attached\nAAA\tunauthorized\nBBB\tdevice\n"

	cases := []struct {
		serial string
		want   []string
	}{
		{"", []string{"BBB"}},
		{"BBB", []string{"BBB"}},
		{"AAA", nil},
		{"CCC", nil},
	}
	for _, tc := range cases {
		got := readyDevices(out, tc.serial)
		if fmt.Sprint(got) != fmt.Sprint(tc.want) {
			t.Errorf("readyDevices(serial=%q) = %v, want %v", tc.serial, got, tc.want)
		}
	}
}

func TestConnectNetwork(t *testing.T) {
	cases := []struct {
		name   string
		stdout string
		wantOK bool
	}{
		{"connected", "connected to 192.168.1.20:5555", true},
		{"already connected", "already connected to 192.168.1.20:5555", true},
		{"refused", "failed to connect to '192.168.1.20:5555': Connection refused", false},
		{"unreachable", "cannot connect to 192.168.1.20:5555: No route to host", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeRunner{handle: func(args []string) (*bridge.Result, error) {
				return ok(args, tc.stdout), nil
			}}
			s := NewSession(r, Options{Target: Target{Host: "192.168.1.20"}})

			err := s.Connect(context.Background())
			if tc.wantOK {
				if err != nil {
					t.Fatalf("Connect: %v", err)
				}
				if !s.Connected() {
					t.Error("session should be connected")
				}
			} else if !errors.Is(err, ErrNoDevice) {
				t.Fatalf("expected ErrNoDevice, got %v", err)
			}

			if cmds := r.commands(); cmds[0] != "connect 192.168.1.20:5555" {
				t.Errorf("first command = %q", cmds[0])
			}
		})
	}
}

func TestConnectNetwork_AddressesLaterCommands(t *testing.T) {
	r := &fakeRunner{handle: func(args []string) (*bridge.Result, error) {
		if args[0] == "connect" {
			return ok(args, "connected to 10.0.0.7:5555"), nil
		}
		return ok(args, "Quest 3"), nil
	}}
	s := NewSession(r, Options{Target: Target{Host: "10.0.0.7"}})
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if _, err := s.QueryInfo(context.Background()); err != nil {
		t.Fatalf("QueryInfo: %v", err)
	}
	for _, c := range r.commands()[1:] {
		if !strings.HasPrefix(c, "-s 10.0.0.7:5555 ") {
			t.Errorf("command %q not addressed to the connected device", c)
		}
	}
}

func TestCheckBridge(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		r := &fakeRunner{handle: func(args []string) (*bridge.Result, error) {
			return ok(args, "Android Debug Bridge version 1.0.41"), nil
		}}
		if err := NewSession(r, Options{}).CheckBridge(context.Background()); err != nil {
			t.Fatalf("CheckBridge: %v", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		r := &fakeRunner{handle: func(args []string) (*bridge.Result, error) {
			return nil, bridge.ErrNotFound
		}}
		err := NewSession(r, Options{}).CheckBridge(context.Background())
		if !errors.Is(err, ErrBridgeMissing) {
			t.Fatalf("expected ErrBridgeMissing, got %v", err)
		}
	})
}

func TestQueryInfo(t *testing.T) {
	r := &fakeRunner{handle: func(args []string) (*bridge.Result, error) {
		switch {
		case has(args, "ro.product.model"):
			return ok(args, "Quest 3\n"), nil
		case has(args, "ro.build.version.release"):
			return exit(args, 1), nil
		case has(args, "wm"):
			return ok(args, "Physical size: 3664x1920\n"), nil
		}
		return nil, errors.New("unexpected command")
	}}
	s := connectedSession(r)

	info, err := s.QueryInfo(context.Background())
	if err != nil {
		t.Fatalf("QueryInfo: %v", err)
	}
	if info.Model != "Quest 3" {
		t.Errorf("Model = %q", info.Model)
	}
	if info.OSVersion != "" {
		t.Errorf("OSVersion = %q, want empty after failed query", info.OSVersion)
	}
	if info.Resolution != "Physical size: 3664x1920" {
		t.Errorf("Resolution = %q", info.Resolution)
	}
	if info.Width != 3664 || info.Height != 1920 {
		t.Errorf("parsed size = %dx%d", info.Width, info.Height)
	}
}

func TestQueryInfo_NotConnected(t *testing.T) {
	s := NewSession(&fakeRunner{}, Options{})
	if _, err := s.QueryInfo(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestCaptureStill_Success(t *testing.T) {
	local := filepath.Join(t.TempDir(), "shot.png")
	r := &fakeRunner{handle: func(args []string) (*bridge.Result, error) {
		if args[0] == "pull" {
			if err := os.WriteFile(args[2], []byte("png"), 0o644); err != nil {
				return nil, err
			}
		}
		return ok(args, ""), nil
	}}
	s := connectedSession(r)

	if err := s.CaptureStill(context.Background(), local); err != nil {
		t.Fatalf("CaptureStill: %v", err)
	}

	cmds := r.commands()
	if len(cmds) != 3 {
		t.Fatalf("expected 3 commands, got %v", cmds)
	}
	remote := s.remotePath("screenshot.png")
	want := []string{
		"shell screencap -p " + remote,
		"pull " + remote + " " + local,
		"shell rm -f " + remote,
	}
	for i := range want {
		if cmds[i] != want[i] {
			t.Errorf("command %d = %q, want %q", i, cmds[i], want[i])
		}
	}
	if _, err := os.Stat(local); err != nil {
		t.Errorf("local file missing: %v", err)
	}
}

func TestCaptureStill_ScreencapFails(t *testing.T) {
	local := filepath.Join(t.TempDir(), "shot.png")
	r := &fakeRunner{handle: func(args []string) (*bridge.Result, error) {
		if has(args, "screencap") {
			return exit(args, 1), nil
		}
		return ok(args, ""), nil
	}}
	s := connectedSession(r)

	err := s.CaptureStill(context.Background(), local)
	if !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("expected ErrCaptureFailed, got %v", err)
	}
	if !IsCommandFailure(err) {
		t.Error("expected a command failure")
	}
	if r.count("pull") != 0 {
		t.Error("pull should not run after a failed screenshot")
	}
	if r.count("shell rm") != 1 {
		t.Errorf("remote cleanup not issued: %v", r.commands())
	}
	if _, err := os.Stat(local); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("local file should not exist, stat err = %v", err)
	}
}

func TestCaptureStill_PullFailsStillCleansUp(t *testing.T) {
	local := filepath.Join(t.TempDir(), "shot.png")
	r := &fakeRunner{handle: func(args []string) (*bridge.Result, error) {
		if args[0] == "pull" {
			// Leave a truncated file behind like an interrupted transfer.
			_ = os.WriteFile(args[2], []byte("pn"), 0o644)
			return exit(args, 1), nil
		}
		return ok(args, ""), nil
	}}
	s := connectedSession(r)

	if err := s.CaptureStill(context.Background(), local); !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("expected ErrCaptureFailed, got %v", err)
	}
	if r.count("shell rm") != 1 {
		t.Errorf("remote cleanup not issued: %v", r.commands())
	}
	if _, err := os.Stat(local); !errors.Is(err, os.ErrNotExist) {
		t.Error("partial local file should have been removed")
	}
}

func TestCaptureStill_NotConnected(t *testing.T) {
	r := &fakeRunner{}
	s := NewSession(r, Options{})
	if err := s.CaptureStill(context.Background(), "x.png"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if len(r.commands()) != 0 {
		t.Error("no bridge commands expected")
	}
}

func TestCaptureStillBytes(t *testing.T) {
	r := &fakeRunner{handle: func(args []string) (*bridge.Result, error) {
		return ok(args, "\x89PNG"), nil
	}}
	s := connectedSession(r)

	data, err := s.CaptureStillBytes(context.Background())
	if err != nil {
		t.Fatalf("CaptureStillBytes: %v", err)
	}
	if string(data) != "\x89PNG" {
		t.Errorf("data = %q", data)
	}
	if got := r.commands()[0]; got != "shell screencap -p" {
		t.Errorf("command = %q", got)
	}
}

func TestCaptureStillBytes_ClassifiesFailures(t *testing.T) {
	t.Run("non-zero exit", func(t *testing.T) {
		s := connectedSession(&fakeRunner{handle: func(args []string) (*bridge.Result, error) {
			return exit(args, 1), nil
		}})
		_, err := s.CaptureStillBytes(context.Background())
		if !IsCommandFailure(err) {
			t.Fatalf("expected command failure, got %v", err)
		}
	})

	t.Run("bridge unusable", func(t *testing.T) {
		s := connectedSession(&fakeRunner{handle: func(args []string) (*bridge.Result, error) {
			return nil, bridge.ErrNotFound
		}})
		_, err := s.CaptureStillBytes(context.Background())
		if err == nil || IsCommandFailure(err) {
			t.Fatalf("expected a non-command error, got %v", err)
		}
	})
}

func TestCaptureVideo(t *testing.T) {
	local := filepath.Join(t.TempDir(), "clip.mp4")
	r := &fakeRunner{}
	s := connectedSession(r)

	if err := s.CaptureVideo(context.Background(), 30, local); err != nil {
		t.Fatalf("CaptureVideo: %v", err)
	}

	remote := s.remotePath("recording.mp4")
	want := []string{
		"shell screenrecord --time-limit=30 " + remote,
		"pull " + remote + " " + local,
		"shell rm -f " + remote,
	}
	cmds := r.commands()
	if fmt.Sprint(cmds) != fmt.Sprint(want) {
		t.Errorf("commands = %v, want %v", cmds, want)
	}
}

func TestCaptureVideo_RejectsDuration(t *testing.T) {
	r := &fakeRunner{}
	s := connectedSession(r)

	for _, secs := range []int{0, -1, MaxRecordSeconds + 1} {
		if err := s.CaptureVideo(context.Background(), secs, "clip.mp4"); err == nil {
			t.Errorf("duration %d should be rejected", secs)
		}
	}
	if len(r.commands()) != 0 {
		t.Error("no bridge commands expected")
	}
}

func TestCaptureFrame_DefersCleanup(t *testing.T) {
	r := &fakeRunner{}
	s := connectedSession(r)

	if err := s.CaptureFrame(context.Background(), filepath.Join(t.TempDir(), "frame_000000.png")); err != nil {
		t.Fatalf("CaptureFrame: %v", err)
	}
	if r.count("shell rm") != 0 {
		t.Error("CaptureFrame should not remove the remote file")
	}

	s.CleanupRemote(context.Background())
	if r.count("shell rm -f") != 1 {
		t.Errorf("CleanupRemote did not issue rm: %v", r.commands())
	}
}

func TestDisconnect(t *testing.T) {
	t.Run("network failure still clears flag", func(t *testing.T) {
		r := &fakeRunner{handle: func(args []string) (*bridge.Result, error) {
			return nil, errors.New("bridge crashed")
		}}
		s := NewSession(r, Options{Target: Target{Host: "10.0.0.7", Port: 5555}})
		s.connected.Store(true)

		s.Disconnect(context.Background())
		if s.Connected() {
			t.Error("connected flag should be cleared")
		}
		if got := r.commands(); len(got) != 1 || got[0] != "disconnect 10.0.0.7:5555" {
			t.Errorf("commands = %v", got)
		}
	})

	t.Run("usb issues no command", func(t *testing.T) {
		r := &fakeRunner{}
		s := connectedSession(r)
		s.Disconnect(context.Background())
		s.Disconnect(context.Background())
		if s.Connected() {
			t.Error("connected flag should be cleared")
		}
		if len(r.commands()) != 0 {
			t.Errorf("unexpected commands %v", r.commands())
		}
	})
}

func TestTarget(t *testing.T) {
	if got := (Target{Host: "10.0.0.7"}).Address(); got != "10.0.0.7:5555" {
		t.Errorf("Address = %q", got)
	}
	if got := (Target{Host: "10.0.0.7", Port: 5037}).Address(); got != "10.0.0.7:5037" {
		t.Errorf("Address = %q", got)
	}
	if (Target{Serial: "ABC"}).IsNetwork() {
		t.Error("serial target is not a network target")
	}
}

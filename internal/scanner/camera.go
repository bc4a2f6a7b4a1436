package scanner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/retailops/stockaudit/internal/config"
)

const videoSysfsRoot = "/sys/class/video4linux"

// videoDevice pairs a capture device path with its kernel-reported label.
type videoDevice struct {
	Path  string
	Label string
}

// rearLabelHints are matched case-insensitively against device labels to
// find a rear-facing camera.
var rearLabelHints = []string{"back", "rear", "environment"}

func listVideoDevices() []videoDevice {
	entries, err := os.ReadDir(videoSysfsRoot)
	if err != nil {
		return nil
	}

	var devices []videoDevice
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "video") {
			continue
		}
		label := ""
		if raw, err := os.ReadFile(filepath.Join(videoSysfsRoot, name, "name")); err == nil {
			label = strings.TrimSpace(string(raw))
		}
		devices = append(devices, videoDevice{Path: "/dev/" + name, Label: label})
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices
}

// pickCaptureDevice prefers a rear-facing camera by label heuristic and
// falls back to the first enumerated device.
func pickCaptureDevice(devices []videoDevice) (videoDevice, bool) {
	for _, d := range devices {
		label := strings.ToLower(d.Label)
		for _, hint := range rearLabelHints {
			if strings.Contains(label, hint) {
				return d, true
			}
		}
	}
	if len(devices) > 0 {
		return devices[0], true
	}
	return videoDevice{}, false
}

// cameraDecoder runs an external continuous decoder (zbarcam-compatible) on
// a video device and normalizes its stdout lines into decode events. The
// symbol decoding itself happens entirely inside the child process.
type cameraDecoder struct {
	cfg    config.ScannerConfig
	logger *zap.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stopped bool
}

func newCameraDecoder(cfg config.ScannerConfig, logger *zap.Logger) *cameraDecoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cameraDecoder{cfg: cfg, logger: logger}
}

func (d *cameraDecoder) Mode() Mode { return ModeCamera }

// Start spawns the decoder process and begins streaming decode events.
func (d *cameraDecoder) Start(ev Events) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd != nil {
		return nil
	}

	device := d.cfg.CameraDevice
	if device == "" {
		picked, ok := pickCaptureDevice(listVideoDevices())
		if !ok {
			return &DeviceAccessError{Mode: ModeCamera, Err: errors.New("no video capture device found")}
		}
		device = picked.Path
		d.logger.Info("selected capture device", zap.String("device", picked.Path), zap.String("label", picked.Label))
	}

	cmd := exec.Command(d.cfg.CameraDecoderBin, "--raw", "--nodisplay", device)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &DeviceAccessError{Mode: ModeCamera, Err: fmt.Errorf("attach stdout: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &DeviceAccessError{Mode: ModeCamera, Err: fmt.Errorf("attach stderr: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		return &DeviceAccessError{Mode: ModeCamera, Err: err}
	}

	d.cmd = cmd
	d.stopped = false

	go d.readNoise(stderr, ev)
	go d.readDecodes(cmd, stdout, ev)

	d.logger.Info("camera decoder started", zap.String("device", device), zap.String("bin", d.cfg.CameraDecoderBin))
	return nil
}

// Stop kills the decoder process. The read goroutine reaps it.
func (d *cameraDecoder) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd == nil {
		return nil
	}
	d.stopped = true
	err := d.cmd.Process.Kill()
	d.cmd = nil
	return err
}

func (d *cameraDecoder) readDecodes(cmd *exec.Cmd, stdout io.Reader, ev Events) {
	lines := bufio.NewScanner(stdout)
	for lines.Scan() {
		code := strings.TrimSpace(lines.Text())
		if code == "" {
			continue
		}
		// zbarcam prefixes the symbology, e.g. "EAN-13:4006381333931".
		if idx := strings.LastIndex(code, ":"); idx >= 0 {
			code = code[idx+1:]
		}
		if ev.OnDecode != nil {
			ev.OnDecode(code)
		}
	}

	waitErr := cmd.Wait()

	d.mu.Lock()
	stopped := d.stopped
	d.cmd = nil
	d.mu.Unlock()

	if stopped {
		return
	}
	if ev.OnFatal != nil {
		if waitErr == nil {
			waitErr = errors.New("decoder process exited")
		}
		ev.OnFatal(&DeviceAccessError{Mode: ModeCamera, Err: waitErr})
	}
}

func (d *cameraDecoder) readNoise(stderr io.Reader, ev Events) {
	lines := bufio.NewScanner(stderr)
	for lines.Scan() {
		text := strings.TrimSpace(lines.Text())
		if text == "" || ev.OnNoise == nil {
			continue
		}
		ev.OnNoise(errors.New(text))
	}
}

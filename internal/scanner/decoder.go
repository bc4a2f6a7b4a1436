// Package scanner owns the barcode acquisition pipeline: the decoder
// hardware adapters, the duplicate-read debouncer and the lifecycle
// controller that ties them together.
package scanner

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/retailops/stockaudit/internal/config"
)

// Mode selects the barcode decoder hardware profile.
type Mode string

const (
	// ModeCamera drives an external continuous decoder process attached to
	// a video capture device.
	ModeCamera Mode = "camera"
	// ModeHID reads a tethered scanner gun on a serial port.
	ModeHID Mode = "hid"
)

// ParseMode validates a mode string coming from configuration or the API.
func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case ModeCamera, ModeHID:
		return Mode(value), nil
	default:
		return "", fmt.Errorf("scanner: unknown mode %q", value)
	}
}

// Events carries the callbacks a decoder feeds while running. OnNoise events
// are non-fatal and ignored by the controller beyond counting; OnFatal
// reports abnormal device loss and ends the session.
type Events struct {
	OnDecode func(code string)
	OnNoise  func(err error)
	OnFatal  func(err error)
}

// Decoder wraps a platform-specific continuous barcode decoder. Both
// profiles support the same symbol set and emit one normalized code string
// per decode.
type Decoder interface {
	Mode() Mode
	// Start acquires the underlying device and emits events until Stop is
	// called. Calling Start on a running decoder is a no-op.
	Start(ev Events) error
	Stop() error
}

// Factory builds a decoder for the requested profile. Profile selection
// happens only here; nothing outside the adapter boundary branches on Mode.
type Factory func(mode Mode) (Decoder, error)

// NewFactory returns a Factory backed by the configured hardware settings.
func NewFactory(cfg config.ScannerConfig, logger *zap.Logger) Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(mode Mode) (Decoder, error) {
		switch mode {
		case ModeCamera:
			return newCameraDecoder(cfg, logger.Named("decoder.camera")), nil
		case ModeHID:
			return newSerialDecoder(cfg, logger.Named("decoder.hid")), nil
		default:
			return nil, fmt.Errorf("scanner: unknown mode %q", mode)
		}
	}
}

// DeviceAccessError reports that the decoder device could not be acquired or
// was lost. Fatal to the current scan session; recovery requires an explicit
// Start.
type DeviceAccessError struct {
	Mode Mode
	Err  error
}

func (e *DeviceAccessError) Error() string {
	return fmt.Sprintf("scanner: %s device access failed: %v", e.Mode, e.Err)
}

func (e *DeviceAccessError) Unwrap() error { return e.Err }

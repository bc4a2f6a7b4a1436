package scanner

import (
	"bufio"
	"bytes"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/retailops/stockaudit/internal/config"
)

// serialDecoder reads a tethered scanner gun on a serial port. Guns emit one
// decoded payload per trigger pull, terminated by CR, LF or CRLF.
type serialDecoder struct {
	cfg    config.ScannerConfig
	logger *zap.Logger

	mu      sync.Mutex
	port    serial.Port
	stopped bool
}

func newSerialDecoder(cfg config.ScannerConfig, logger *zap.Logger) *serialDecoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &serialDecoder{cfg: cfg, logger: logger}
}

func (d *serialDecoder) Mode() Mode { return ModeHID }

// Start opens the configured serial port, or the first enumerated one when
// no port is pinned, and begins streaming decode events.
func (d *serialDecoder) Start(ev Events) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port != nil {
		return nil
	}

	portName := d.cfg.SerialPort
	if portName == "" {
		ports, err := serial.GetPortsList()
		if err != nil {
			return &DeviceAccessError{Mode: ModeHID, Err: err}
		}
		if len(ports) == 0 {
			return &DeviceAccessError{Mode: ModeHID, Err: errors.New("no serial ports found")}
		}
		sort.Strings(ports)
		portName = ports[0]
	}

	mode := &serial.Mode{
		BaudRate: d.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return &DeviceAccessError{Mode: ModeHID, Err: err}
	}

	d.port = port
	d.stopped = false
	go d.readLoop(port, ev)

	d.logger.Info("serial decoder started", zap.String("port", portName), zap.Int("baud", d.cfg.BaudRate))
	return nil
}

// Stop closes the port; the read loop terminates on the resulting error.
func (d *serialDecoder) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port == nil {
		return nil
	}
	d.stopped = true
	err := d.port.Close()
	d.port = nil
	return err
}

func (d *serialDecoder) readLoop(port serial.Port, ev Events) {
	lines := bufio.NewScanner(port)
	lines.Split(scanCodes)

	for lines.Scan() {
		code := strings.TrimSpace(lines.Text())
		if code == "" {
			continue
		}
		if ev.OnDecode != nil {
			ev.OnDecode(code)
		}
	}

	readErr := lines.Err()

	d.mu.Lock()
	stopped := d.stopped
	d.port = nil
	d.mu.Unlock()

	if stopped {
		return
	}
	if ev.OnFatal != nil {
		if readErr == nil {
			readErr = errors.New("serial stream closed")
		}
		ev.OnFatal(&DeviceAccessError{Mode: ModeHID, Err: readErr})
	}
}

// scanCodes splits the serial stream on CR, LF or CRLF terminators.
func scanCodes(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if idx := bytes.IndexAny(data, "\r\n"); idx >= 0 {
		advance = idx + 1
		if data[idx] == '\r' && len(data) > advance && data[advance] == '\n' {
			advance++
		}
		return advance, data[:idx], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

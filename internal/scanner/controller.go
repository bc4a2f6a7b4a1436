package scanner

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/retailops/stockaudit/internal/metrics"
)

// Status is the observable lifecycle state of the scan session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusStarting  Status = "starting"
	StatusActive    Status = "active"
	StatusDetecting Status = "detecting"
	StatusStopping  Status = "stopping"
	StatusError     Status = "error"
)

// defaultDetectFlash is how long the status stays in Detecting after a
// decode before reverting to Active.
const defaultDetectFlash = 800 * time.Millisecond

// Snapshot is the controller state handed to the API layer.
type Snapshot struct {
	Status     Status `json:"status"`
	Mode       Mode   `json:"mode,omitempty"`
	Privileged bool   `json:"privileged"`
	LastCode   string `json:"last_code,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

// ResolveFunc consumes a debounced decode downstream.
type ResolveFunc func(code string, privileged bool)

// Controller owns the decoder device for the scan session. It is the only
// component allowed to acquire or release the device, and it never holds two
// concurrent acquisitions: transitions are serialized by a busy guard, and
// start/stop requests arriving mid-transition are dropped as no-ops.
type Controller struct {
	newDecoder  Factory
	debounce    *Debouncer
	resolve     ResolveFunc
	logger      *zap.Logger
	detectFlash time.Duration

	mu         sync.Mutex
	busy       bool
	status     Status
	mode       Mode
	privileged bool
	lastCode   string
	lastError  string
	dec        Decoder
	flashTimer *time.Timer
	onStatus   func(Snapshot)
}

// NewController wires the lifecycle controller. resolve receives each
// debounced code; it may be nil while handlers are not attached yet.
func NewController(factory Factory, debounce *Debouncer, resolve ResolveFunc, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce == nil {
		debounce = NewDebouncer(DefaultDebounceWindow)
	}
	return &Controller{
		newDecoder:  factory,
		debounce:    debounce,
		resolve:     resolve,
		logger:      logger,
		detectFlash: defaultDetectFlash,
		status:      StatusIdle,
	}
}

// SetStatusListener registers a callback invoked on every status change.
func (c *Controller) SetStatusListener(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = fn
}

// Status returns the current observable snapshot.
func (c *Controller) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Start acquires the decoder device for the given hardware profile and
// begins emitting decode events. Already active, or a transition in flight:
// no-op. On failure the controller lands in Error and returns a
// *DeviceAccessError; recovery requires another explicit Start.
func (c *Controller) Start(mode Mode, privileged bool) error {
	c.mu.Lock()
	switch {
	case c.busy:
		c.mu.Unlock()
		return nil
	case c.status == StatusActive || c.status == StatusDetecting:
		c.mu.Unlock()
		return nil
	}
	c.busy = true
	c.mode = mode
	c.privileged = privileged
	c.setStatusLocked(StatusStarting)
	c.mu.Unlock()

	dec, err := c.newDecoder(mode)
	if err == nil {
		err = dec.Start(Events{
			OnDecode: c.handleDecode,
			OnNoise:  c.handleNoise,
			OnFatal:  c.handleFatal,
		})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if err != nil {
		c.lastError = err.Error()
		c.setStatusLocked(StatusError)
		c.logger.Error("scan session start failed", zap.String("mode", string(mode)), zap.Error(err))
		var dev *DeviceAccessError
		if errors.As(err, &dev) {
			return err
		}
		return &DeviceAccessError{Mode: mode, Err: err}
	}

	c.dec = dec
	c.lastError = ""
	c.debounce.Reset()
	c.setStatusLocked(StatusActive)
	c.logger.Info("scan session started", zap.String("mode", string(mode)), zap.Bool("privileged", privileged))
	return nil
}

// Stop releases the decoder device. It always lands in Idle, even when the
// release fails, so a device handle never leaks into the next session.
func (c *Controller) Stop() error {
	c.mu.Lock()
	switch {
	case c.busy:
		c.mu.Unlock()
		return nil
	case c.status == StatusIdle:
		c.mu.Unlock()
		return nil
	}
	c.busy = true
	c.setStatusLocked(StatusStopping)
	dec := c.dec
	c.dec = nil
	if c.flashTimer != nil {
		c.flashTimer.Stop()
		c.flashTimer = nil
	}
	c.mu.Unlock()

	var err error
	if dec != nil {
		err = dec.Stop()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	c.lastError = ""
	c.setStatusLocked(StatusIdle)
	if err != nil {
		c.logger.Warn("decoder release failed", zap.Error(err))
	} else {
		c.logger.Info("scan session stopped")
	}
	return nil
}

// Close performs a best-effort stop on teardown. Release failures are
// swallowed; they must not crash the caller.
func (c *Controller) Close() {
	_ = c.Stop()
}

func (c *Controller) handleDecode(code string) {
	metrics.DecodesTotal.Inc()

	c.mu.Lock()
	if c.status != StatusActive && c.status != StatusDetecting {
		c.mu.Unlock()
		return
	}
	c.lastCode = code
	c.setStatusLocked(StatusDetecting)
	if c.flashTimer != nil {
		c.flashTimer.Stop()
	}
	c.flashTimer = time.AfterFunc(c.detectFlash, c.revertDetecting)
	privileged := c.privileged
	resolve := c.resolve
	c.mu.Unlock()

	if !c.debounce.Accept(code) {
		metrics.DuplicatesSuppressedTotal.Inc()
		return
	}
	if resolve != nil {
		resolve(code, privileged)
	}
}

func (c *Controller) handleNoise(err error) {
	// Decode noise is expected on partial reads; keep it out of the state
	// machine entirely.
	c.logger.Debug("decode noise", zap.Error(err))
}

func (c *Controller) handleFatal(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusActive && c.status != StatusDetecting {
		return
	}
	c.dec = nil
	c.lastError = err.Error()
	c.setStatusLocked(StatusError)
	c.logger.Error("decoder lost", zap.Error(err))
}

func (c *Controller) revertDetecting() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusDetecting {
		c.setStatusLocked(StatusActive)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Status:     c.status,
		Mode:       c.mode,
		Privileged: c.privileged,
		LastCode:   c.lastCode,
		LastError:  c.lastError,
	}
}

func (c *Controller) setStatusLocked(status Status) {
	if c.status == status {
		return
	}
	c.status = status
	if c.onStatus != nil {
		snap := c.snapshotLocked()
		go c.onStatus(snap)
	}
}

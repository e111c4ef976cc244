// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kelly

import (
	"fmt"
	"sync"
	"time"
)

// Controller is the typed command surface over a Driver. Its methods are
// safe for concurrent use; exchanges run one at a time.
type Controller struct {
	mu     sync.Mutex
	driver *Driver

	allowWrite bool

	// cached results, guarded by mu
	snapshot    *MonitorSnapshot
	config      *ConfigBlock
	lastRefresh time.Time
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithConfigWrite enables WriteConfig. Writes are refused by default since
// the block layout has not been verified across firmware revisions.
func WithConfigWrite(enabled bool) ControllerOption {
	return func(c *Controller) {
		c.allowWrite = enabled
	}
}

// NewController wraps a driver
func NewController(d *Driver, opts ...ControllerOption) *Controller {
	c := &Controller{driver: d}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Driver returns the underlying driver
func (c *Controller) Driver() *Driver {
	return c.driver
}

// ReadMonitor reads MONITOR_ONE, TWO and THREE and caches the merged
// snapshot
func (c *Controller) ReadMonitor() (MonitorSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw1, err := c.driver.Do(CmdMonitorOne, nil)
	if err != nil {
		return MonitorSnapshot{}, err
	}
	m1, err := DecodeMonitorOne(raw1)
	if err != nil {
		return MonitorSnapshot{}, err
	}

	raw2, err := c.driver.Do(CmdMonitorTwo, nil)
	if err != nil {
		return MonitorSnapshot{}, err
	}
	m2, err := DecodeMonitorTwo(raw2)
	if err != nil {
		return MonitorSnapshot{}, err
	}

	raw3, err := c.driver.Do(CmdMonitorThree, nil)
	if err != nil {
		return MonitorSnapshot{}, err
	}
	m3, err := DecodeMonitorThree(raw3)
	if err != nil {
		return MonitorSnapshot{}, err
	}

	now := time.Now()
	snap := NewMonitorSnapshot(m1, m2, m3, now)
	c.snapshot = &snap
	c.lastRefresh = now
	return snap, nil
}

// LastSnapshot returns the most recent snapshot from ReadMonitor
func (c *Controller) LastSnapshot() (MonitorSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot == nil {
		return MonitorSnapshot{}, false
	}
	return *c.snapshot, true
}

// LastRefresh returns when ReadMonitor last succeeded
func (c *Controller) LastRefresh() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRefresh
}

// Version reads the firmware version
func (c *Controller) Version() (Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.driver.Do(CmdGetVersion, nil)
	if err != nil {
		return Version{}, err
	}
	return DecodeVersion(raw)
}

// ReadConfig reads the configuration block and caches it as the base for
// later writes
func (c *Controller) ReadConfig() (*ConfigBlock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.driver.Do(CmdReadConfig, nil)
	if err != nil {
		return nil, err
	}
	c.config = DecodeConfig(raw)
	return DecodeConfig(raw), nil
}

// Config returns a copy of the cached block from the last ReadConfig, or nil
func (c *Controller) Config() *ConfigBlock {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config == nil {
		return nil
	}
	return DecodeConfig(c.config.Raw())
}

// WriteConfig sends a raw configuration payload. It fails with
// ErrWriteNotEnabled unless the controller was built WithConfigWrite(true),
// and the payload must be exactly ConfigWriteLength bytes.
func (c *Controller) WriteConfig(data []byte) error {
	if !c.allowWrite {
		return ErrWriteNotEnabled
	}
	if len(data) != ConfigWriteLength {
		return fmt.Errorf("%w: WRITE_CONFIG payload is %d bytes (expected %d)", ErrUnexpectedLength, len(data), ConfigWriteLength)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.driver.Do(CmdWriteConfig, data); err != nil {
		return err
	}
	// cached block no longer reflects the controller
	c.config = nil
	return nil
}

// ApplyConfig encodes the changes in b and writes the leading
// ConfigWriteLength bytes of the result. Changes past that window cannot be
// written and fail with ErrFieldOutsideBlock.
func (c *Controller) ApplyConfig(b *ConfigBlock) ([]RangeWarning, error) {
	raw, warnings, err := EncodeConfig(b)
	if err != nil {
		return nil, err
	}
	if len(raw) < ConfigWriteLength {
		return warnings, fmt.Errorf("%w: block is %d bytes, WRITE_CONFIG needs %d", ErrIncompleteConfigBase, len(raw), ConfigWriteLength)
	}
	for _, name := range b.Changed() {
		f, _ := LookupField(name)
		if f.end() > ConfigWriteLength {
			return warnings, fmt.Errorf("%w: %s (0x%02X) is past the %d-byte write window", ErrFieldOutsideBlock, name, f.Offset, ConfigWriteLength)
		}
	}
	return warnings, c.WriteConfig(raw[:ConfigWriteLength])
}

// PhaseCurrentADC reads the raw phase current ADC counts
func (c *Controller) PhaseCurrentADC() (PhaseADC, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.driver.Do(CmdGetPhaseIAD, nil)
	if err != nil {
		return PhaseADC{}, err
	}
	return DecodePhaseADC(raw)
}

// EnterIdentify starts motor identification
func (c *Controller) EnterIdentify() error {
	return c.simple(CmdEntryIdentify)
}

// QuitIdentify stops motor identification
func (c *Controller) QuitIdentify() error {
	return c.simple(CmdQuitIdentify)
}

// IdentifyStatus reads the motor identification state
func (c *Controller) IdentifyStatus() (IdentifyStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.driver.Do(CmdCheckIdentifyStatus, nil)
	if err != nil {
		return 0, err
	}
	return DecodeIdentifyStatus(raw)
}

// Exchange runs a raw command under the controller lock
func (c *Controller) Exchange(cmd Command, data []byte) ExchangeResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driver.Execute(cmd, data)
}

func (c *Controller) simple(cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.driver.Do(cmd, nil)
	return err
}

package detect

import (
	"context"
	"iter"
	"sync"

	"github.com/pkg/errors"

	"github.com/braillekit/detect/internal/config"
)

// StandardHIDDriverName is the driver implementing the standard HID braille
// protocol. It acts as a generic fallback for any device advertising the
// braille usage page and is always considered a known driver, registered
// or not.
const StandardHIDDriverName = "hidBrailleStandard"

// envHIDStandard toggles the standard HID braille fallback driver.
const envHIDStandard = "DETECT_HID_STANDARD"

// ScanRequest carries the parameters of one scan cycle.
type ScanRequest struct {
	// USB enables matching of connected USB devices.
	USB bool
	// Bluetooth enables matching of possible Bluetooth devices.
	Bluetooth bool
	// LimitToDrivers restricts which drivers are considered this cycle.
	// Nil means no restriction.
	LimitToDrivers []string
}

// allows reports whether a driver passes the request's driver filter.
func (r ScanRequest) allows(driver string) bool {
	return driverAllowed(r.LimitToDrivers, driver)
}

func driverAllowed(limit []string, driver string) bool {
	if limit == nil {
		return true
	}
	for _, name := range limit {
		if name == driver {
			return true
		}
	}
	return false
}

// ScanHandler produces candidate driver/device pairs for one scan cycle.
// Handlers are lazy and restartable: each call returns a fresh sequence and
// holds no state across calls. A non-nil error terminates the cycle.
type ScanHandler func(ctx context.Context, req ScanRequest, snap *Snapshot) iter.Seq2[Candidate, error]

// EngineConfig configures an Engine.
type EngineConfig struct {
	// Inventory is the hardware enumeration collaborator. Required.
	Inventory Inventory
	// Registry holds driver registrations. A fresh registry is created
	// when nil.
	Registry *Registry
	// HIDStandardSupported gates the generic HID braille fallback.
	// Defaults to the DETECT_HID_STANDARD environment toggle.
	HIDStandardSupported func() bool
}

// Engine matches observed hardware against a driver registry through an
// ordered chain of scan handlers. One engine serves one detector instance;
// there is no process-wide state.
type Engine struct {
	registry    *Registry
	source      *infoSource
	hidStandard func() bool

	handlersMu sync.RWMutex
	handlers   []ScanHandler
}

// NewEngine builds an engine with the two built-in scan handlers (USB first,
// then Bluetooth) already registered.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Inventory == nil {
		return nil, errors.New("detect: inventory cannot be nil")
	}
	reg := cfg.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	hidStandard := cfg.HIDStandardSupported
	if hidStandard == nil {
		hidStandard = func() bool { return config.Bool(envHIDStandard, true) }
	}
	e := &Engine{
		registry:    reg,
		source:      newInfoSource(cfg.Inventory),
		hidStandard: hidStandard,
	}
	e.handlers = []ScanHandler{e.scanUSB, e.scanBluetooth}
	return e, nil
}

// Registry exposes the engine's driver registry for registrations.
func (e *Engine) Registry() *Registry { return e.registry }

// RegisterScanHandler appends a handler to the scan chain. Built-in handlers
// keep their position; added handlers run after them in registration order.
func (e *Engine) RegisterScanHandler(h ScanHandler) {
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.handlers = append(e.handlers, h)
}

func (e *Engine) scanHandlers() []ScanHandler {
	e.handlersMu.RLock()
	defer e.handlersMu.RUnlock()
	out := make([]ScanHandler, len(e.handlers))
	copy(out, e.handlers)
	return out
}

// Close clears all registrations and drops the Bluetooth cache.
func (e *Engine) Close() {
	e.registry.Clear()
	e.source.invalidateBluetoothCache()
}

// safeMatch invokes a Bluetooth matcher, converting a panic from third-party
// matcher code into an error that terminates the cycle instead of the
// process.
func safeMatch(driver string, match BluetoothMatcher, m DeviceMatch) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("bluetooth matcher for driver %q panicked: %v", driver, r)
		}
	}()
	return match(m), nil
}

// usbCandidates yields driver/device pairs for connected USB devices.
// Evaluation order: custom devices, then HID devices, then serial ports, each
// tested against drivers in registration order; after all registry matching,
// HID devices advertising the braille usage page are offered to the standard
// HID driver so a vendor driver always wins over the generic fallback.
func (e *Engine) usbCandidates(ctx context.Context, snap *Snapshot, limit []string) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		usbDevs, err := snap.USBDevices(ctx)
		if err != nil {
			yield(Candidate{}, errors.Wrap(err, "list usb devices failed"))
			return
		}
		hidDevs, err := snap.HIDDevices(ctx)
		if err != nil {
			yield(Candidate{}, errors.Wrap(err, "list hid devices failed"))
			return
		}
		comPorts, err := snap.ComPorts(ctx)
		if err != nil {
			yield(Candidate{}, errors.Wrap(err, "list com ports failed"))
			return
		}

		// Matches are constructed once per physical device and reused
		// against every candidate driver.
		custom := make([]DeviceMatch, 0, len(usbDevs))
		for _, rec := range usbDevs {
			custom = append(custom, newDeviceMatch(KindCustom, rec.USBID, rec.DevicePath, rec))
		}
		hid := make([]DeviceMatch, 0, len(hidDevs))
		for _, rec := range hidDevs {
			if rec.Provider != ProviderUSB {
				continue
			}
			hid = append(hid, newDeviceMatch(KindHID, rec.USBID, rec.DevicePath, rec))
		}
		serial := make([]DeviceMatch, 0, len(comPorts))
		for _, rec := range comPorts {
			if rec.USBID == "" {
				continue
			}
			serial = append(serial, newDeviceMatch(KindSerial, rec.USBID, rec.Port, rec))
		}

		entries := e.registry.snapshot()
		for _, group := range [][]DeviceMatch{custom, hid, serial} {
			for _, m := range group {
				for _, entry := range entries {
					if !driverAllowed(limit, entry.name) {
						continue
					}
					if entry.hasID(m.Kind, m.ID) {
						if !yield(Candidate{Driver: entry.name, Match: m}, nil) {
							return
						}
					}
				}
			}
		}

		if e.hidStandard() && driverAllowed(limit, StandardHIDDriverName) {
			for _, m := range hid {
				// Checked after all registry matching so a vendor
				// specific driver is preferred over the braille HID
				// protocol.
				if isBrailleHIDMatch(m) {
					if !yield(Candidate{Driver: StandardHIDDriverName, Match: m}, nil) {
						return
					}
				}
			}
		}
	}
}

// btCandidates yields driver/device pairs for possible Bluetooth devices:
// COM ports exposing a Bluetooth name and Bluetooth-provider HID devices,
// matched only through each driver's registered matcher. The generic HID
// fallback again runs last.
func (e *Engine) btCandidates(ctx context.Context, snap *Snapshot, limit []string) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		comPorts, err := snap.ComPorts(ctx)
		if err != nil {
			yield(Candidate{}, errors.Wrap(err, "list com ports failed"))
			return
		}
		hidDevs, err := snap.HIDDevices(ctx)
		if err != nil {
			yield(Candidate{}, errors.Wrap(err, "list hid devices failed"))
			return
		}

		serial := make([]DeviceMatch, 0, len(comPorts))
		for _, rec := range comPorts {
			if rec.BluetoothName == "" {
				continue
			}
			serial = append(serial, newDeviceMatch(KindSerial, rec.BluetoothName, rec.Port, rec))
		}
		hid := make([]DeviceMatch, 0, len(hidDevs))
		for _, rec := range hidDevs {
			if rec.Provider != ProviderBluetooth {
				continue
			}
			hid = append(hid, newDeviceMatch(KindHID, rec.HardwareID, rec.DevicePath, rec))
		}

		entries := e.registry.snapshot()
		for _, group := range [][]DeviceMatch{serial, hid} {
			for _, m := range group {
				for _, entry := range entries {
					if entry.btMatch == nil {
						continue
					}
					if !driverAllowed(limit, entry.name) {
						continue
					}
					ok, matchErr := safeMatch(entry.name, entry.btMatch, m)
					if matchErr != nil {
						yield(Candidate{}, matchErr)
						return
					}
					if ok {
						if !yield(Candidate{Driver: entry.name, Match: m}, nil) {
							return
						}
					}
				}
			}
		}

		if e.hidStandard() && driverAllowed(limit, StandardHIDDriverName) {
			for _, m := range hid {
				if isBrailleHIDMatch(m) {
					if !yield(Candidate{Driver: StandardHIDDriverName, Match: m}, nil) {
						return
					}
				}
			}
		}
	}
}

// scanUSB is the built-in USB scan handler.
func (e *Engine) scanUSB(ctx context.Context, req ScanRequest, snap *Snapshot) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		if !req.USB {
			return
		}
		for c, err := range e.usbCandidates(ctx, snap, req.LimitToDrivers) {
			if !yield(c, err) {
				return
			}
		}
	}
}

// scanBluetooth is the built-in Bluetooth scan handler. It serves results
// from the Bluetooth cache when one exists; otherwise it enumerates fresh
// and stores the results, but only when the sequence runs to completion, so
// an aborted scan never publishes a partial cache.
func (e *Engine) scanBluetooth(ctx context.Context, req ScanRequest, snap *Snapshot) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		if !req.Bluetooth {
			return
		}
		if cached, ok := e.source.bluetoothCache(); ok {
			for _, c := range cached {
				if !req.allows(c.Driver) {
					continue
				}
				if !yield(c, nil) {
					return
				}
			}
			return
		}
		fresh := make([]Candidate, 0, 4)
		for c, err := range e.btCandidates(ctx, snap, req.LimitToDrivers) {
			if err != nil {
				yield(Candidate{}, err)
				return
			}
			fresh = append(fresh, c)
			if !yield(c, nil) {
				return
			}
		}
		e.source.setBluetoothCache(fresh)
	}
}

// DriversForConnectedUSBDevices returns matching drivers for all connected
// USB devices, in evaluation order. A nil limit means no driver filtering.
func (e *Engine) DriversForConnectedUSBDevices(ctx context.Context, limit []string) ([]Candidate, error) {
	return collectCandidates(e.usbCandidates(ctx, e.source.newSnapshot(), limit))
}

// DriversForPossibleBluetoothDevices returns matching drivers for all
// Bluetooth devices possibly in range. Always enumerates fresh; the
// Bluetooth cache is only consulted by background scans.
func (e *Engine) DriversForPossibleBluetoothDevices(ctx context.Context, limit []string) ([]Candidate, error) {
	return collectCandidates(e.btCandidates(ctx, e.source.newSnapshot(), limit))
}

func collectCandidates(seq iter.Seq2[Candidate, error]) ([]Candidate, error) {
	var out []Candidate
	for c, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// usbDevicesForDriver yields connected USB devices for one driver.
func (e *Engine) usbDevicesForDriver(ctx context.Context, snap *Snapshot, driver string) iter.Seq2[DeviceMatch, error] {
	return func(yield func(DeviceMatch, error) bool) {
		if driver != StandardHIDDriverName {
			if _, err := e.registry.lookup(driver); err != nil {
				yield(DeviceMatch{}, err)
				return
			}
		}
		for c, err := range e.usbCandidates(ctx, snap, []string{driver}) {
			if err != nil {
				yield(DeviceMatch{}, err)
				return
			}
			if c.Driver != driver {
				continue
			}
			if !yield(c.Match, nil) {
				return
			}
		}
	}
}

// bluetoothDevicesForDriver yields possible Bluetooth devices for one driver.
func (e *Engine) bluetoothDevicesForDriver(ctx context.Context, snap *Snapshot, driver string) iter.Seq2[DeviceMatch, error] {
	return func(yield func(DeviceMatch, error) bool) {
		if driver != StandardHIDDriverName {
			if _, err := e.registry.lookup(driver); err != nil {
				yield(DeviceMatch{}, err)
				return
			}
		}
		for c, err := range e.btCandidates(ctx, snap, []string{driver}) {
			if err != nil {
				yield(DeviceMatch{}, err)
				return
			}
			if c.Driver != driver {
				continue
			}
			if !yield(c.Match, nil) {
				return
			}
		}
	}
}

// USBDevicesForDriver returns connected USB devices associated with a
// driver. Returns an UnknownDriverError for a driver that was never
// registered, except the standard HID driver which is always known.
func (e *Engine) USBDevicesForDriver(ctx context.Context, driver string) ([]DeviceMatch, error) {
	return collectMatches(e.usbDevicesForDriver(ctx, e.source.newSnapshot(), driver))
}

// BluetoothDevicesForDriver returns possible Bluetooth devices associated
// with a driver, with the same unknown-driver semantics as
// USBDevicesForDriver.
func (e *Engine) BluetoothDevicesForDriver(ctx context.Context, driver string) ([]DeviceMatch, error) {
	return collectMatches(e.bluetoothDevicesForDriver(ctx, e.source.newSnapshot(), driver))
}

func collectMatches(seq iter.Seq2[DeviceMatch, error]) ([]DeviceMatch, error) {
	var out []DeviceMatch
	for m, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// DriverHasPossibleDevices reports whether any USB or Bluetooth device is
// currently associated with the driver. Short-circuits on the first hit.
func (e *Engine) DriverHasPossibleDevices(ctx context.Context, driver string) (bool, error) {
	snap := e.source.newSnapshot()
	for _, seq := range []iter.Seq2[DeviceMatch, error]{
		e.usbDevicesForDriver(ctx, snap, driver),
		e.bluetoothDevicesForDriver(ctx, snap, driver),
	} {
		for _, err := range seq {
			if err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// SupportsAutoDetection reports whether the driver has any detection data.
// The standard HID driver is always detectable.
func (e *Engine) SupportsAutoDetection(driver string) bool {
	if driver == StandardHIDDriverName {
		return true
	}
	return e.registry.SupportsAutoDetection(driver)
}

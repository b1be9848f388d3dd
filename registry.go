package detect

import (
	"regexp"
	"sync"
)

// usbIDPattern is the required shape of a USB association identifier.
// Hexadecimal characters must be uppercase.
var usbIDPattern = regexp.MustCompile(`^VID_[0-9A-F]{4}&PID_[0-9A-F]{4}$`)

// BluetoothMatcher decides whether a Bluetooth device match belongs to a
// driver. Matchers must be pure: no side effects, no retained references.
type BluetoothMatcher func(m DeviceMatch) bool

type driverEntry struct {
	name    string
	ids     map[ConnectionKind]map[string]struct{}
	btMatch BluetoothMatcher
}

func (e *driverEntry) hasID(kind ConnectionKind, id string) bool {
	set, ok := e.ids[kind]
	if !ok {
		return false
	}
	_, ok = set[id]
	return ok
}

// Registry maps driver names to the device identifiers and Bluetooth matchers
// they accept. Insertion order of drivers is the tie-break priority when
// multiple drivers could claim the same physical device: first registered
// wins. At most one driver may be demoted to evaluate last.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*driverEntry
	demoted string
}

// NewRegistry returns an empty registry. Registrations are expected before
// the first scan; all methods are nevertheless safe for concurrent use.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*driverEntry)}
}

func (r *Registry) entryLocked(driver string) *driverEntry {
	if e, ok := r.entries[driver]; ok {
		return e
	}
	e := &driverEntry{
		name: driver,
		ids:  make(map[ConnectionKind]map[string]struct{}),
	}
	r.entries[driver] = e
	r.order = append(r.order, driver)
	return e
}

// AddUSBDevices associates USB identifiers of the given connection kind with
// a driver. Every identifier must match VID_XXXX&PID_XXXX with uppercase hex;
// if any is malformed the whole call fails with *InvalidIdentifierError and
// nothing is stored.
func (r *Registry) AddUSBDevices(driver string, kind ConnectionKind, ids []string) error {
	var malformed []string
	for _, id := range ids {
		if !usbIDPattern.MatchString(id) {
			malformed = append(malformed, id)
		}
	}
	if len(malformed) > 0 {
		return &InvalidIdentifierError{Driver: driver, Kind: kind, IDs: malformed}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.entryLocked(driver)
	set, ok := entry.ids[kind]
	if !ok {
		set = make(map[string]struct{}, len(ids))
		entry.ids[kind] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return nil
}

// AddBluetoothDevices associates a Bluetooth matcher with a driver, replacing
// any previous matcher for that driver.
func (r *Registry) AddBluetoothDevices(driver string, match BluetoothMatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entryLocked(driver).btMatch = match
}

// DemoteToEnd moves a driver to the end of the evaluation order. Intended for
// a driver whose Bluetooth matcher is maximally permissive and must only
// apply when no more specific driver claims a device. A second demotion
// request for a different driver is a configuration error.
func (r *Registry) DemoteToEnd(driver string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.demoted != "" && r.demoted != driver {
		return ErrDemotionConflict
	}
	r.entryLocked(driver)
	r.demoted = driver
	return nil
}

// SupportsAutoDetection reports whether the driver has any registration.
func (r *Registry) SupportsAutoDetection(driver string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[driver]
	return ok
}

// Drivers returns the registered driver names in evaluation order.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orderedLocked()
}

// Clear removes all registrations. Used at full teardown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.demoted = ""
	r.entries = make(map[string]*driverEntry)
}

func (r *Registry) orderedLocked() []string {
	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if name == r.demoted {
			continue
		}
		names = append(names, name)
	}
	if r.demoted != "" {
		if _, ok := r.entries[r.demoted]; ok {
			names = append(names, r.demoted)
		}
	}
	return names
}

// snapshot returns the entries in evaluation order. Entries are shared, not
// copied: identifier sets are only mutated under the registry lock and scans
// treat them as read-only.
func (r *Registry) snapshot() []*driverEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.orderedLocked()
	entries := make([]*driverEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, r.entries[name])
	}
	return entries
}

// lookup returns the entry for driver, or an UnknownDriverError if the driver
// was never registered.
func (r *Registry) lookup(driver string) (*driverEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[driver]
	if !ok {
		return nil, &UnknownDriverError{Driver: driver}
	}
	return e, nil
}

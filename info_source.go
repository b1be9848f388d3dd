package detect

import (
	"context"
	"sync"
)

// Snapshot is a cache-only view of the hardware inventory for one scan
// cycle. Each list is fetched from the inventory at most once and memoized,
// errors included, for the remainder of the cycle. Snapshots are cycle-local
// and never reused across scans.
type Snapshot struct {
	inv Inventory

	mu  sync.Mutex
	usb memoizedList
	com memoizedList
	hid memoizedList
}

type memoizedList struct {
	done    bool
	records []DeviceRecord
	err     error
}

func (m *memoizedList) fetch(ctx context.Context, list func(context.Context) ([]DeviceRecord, error)) ([]DeviceRecord, error) {
	if !m.done {
		m.records, m.err = list(ctx)
		m.done = true
	}
	return m.records, m.err
}

// USBDevices returns the cycle's USB device snapshot.
func (s *Snapshot) USBDevices(ctx context.Context) ([]DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usb.fetch(ctx, s.inv.ListUSBDevices)
}

// ComPorts returns the cycle's COM port snapshot.
func (s *Snapshot) ComPorts(ctx context.Context) ([]DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.com.fetch(ctx, s.inv.ListComPorts)
}

// HIDDevices returns the cycle's HID device snapshot.
func (s *Snapshot) HIDDevices(ctx context.Context) ([]DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hid.fetch(ctx, s.inv.ListHIDDevices)
}

// infoSource fronts the hardware inventory for an engine instance. It hands
// out per-cycle snapshots and owns the Bluetooth result cache, the only
// long-lived mutable shared state in the engine.
type infoSource struct {
	inv Inventory

	btMu    sync.Mutex
	btCache []Candidate
	btSet   bool
}

func newInfoSource(inv Inventory) *infoSource {
	return &infoSource{inv: inv}
}

func (s *infoSource) newSnapshot() *Snapshot {
	return &Snapshot{inv: s.inv}
}

// bluetoothCache returns a copy of the cached Bluetooth results and whether a
// cache has been computed. An empty computed result is distinct from unset.
func (s *infoSource) bluetoothCache() ([]Candidate, bool) {
	s.btMu.Lock()
	defer s.btMu.Unlock()
	if !s.btSet {
		return nil, false
	}
	out := make([]Candidate, len(s.btCache))
	copy(out, s.btCache)
	return out, true
}

// setBluetoothCache stores a defensive copy of the given results.
func (s *infoSource) setBluetoothCache(devs []Candidate) {
	stored := make([]Candidate, len(devs))
	copy(stored, devs)
	s.btMu.Lock()
	defer s.btMu.Unlock()
	s.btCache = stored
	s.btSet = true
}

// invalidateBluetoothCache drops the cache so the next Bluetooth-inclusive
// scan re-enumerates from the inventory.
func (s *infoSource) invalidateBluetoothCache() {
	s.btMu.Lock()
	defer s.btMu.Unlock()
	s.btCache = nil
	s.btSet = false
}

package detect

import "context"

// Inventory enumerates the hardware currently visible to the operating
// system. Implementations may block; they are only called from the scan
// worker or from query callers, never concurrently for the same snapshot.
type Inventory interface {
	ListUSBDevices(ctx context.Context) ([]DeviceRecord, error)
	ListComPorts(ctx context.Context) ([]DeviceRecord, error)
	ListHIDDevices(ctx context.Context) ([]DeviceRecord, error)
}

// Notifier delivers asynchronous external signals, such as hardware topology
// changes or application focus switches. Subscribe returns a function that
// removes the subscription.
type Notifier interface {
	Subscribe(fn func()) (unsubscribe func())
}

// DriverCatalog reports which drivers are currently enabled for automatic
// detection. A nil slice means no restriction. Consulted fresh at scan
// submission time so live configuration changes apply to the next scan.
type DriverCatalog interface {
	EnabledAutoDetectDrivers() []string
}

// TrySelectFunc is the consumer callback invoked once per accepted candidate
// in priority order. Returning true activates the driver and ends the scan.
// It runs on the scan worker goroutine and may block.
type TrySelectFunc func(driver string, match DeviceMatch) bool

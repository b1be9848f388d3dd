package detect

import "fmt"

// ConnectionKind identifies the transport class used to reach a device.
type ConnectionKind string

const (
	// KindHID marks devices reached through the HID subsystem.
	KindHID ConnectionKind = "hid"
	// KindSerial marks devices exposed as COM/serial ports.
	KindSerial ConnectionKind = "serial"
	// KindCustom marks devices operated through a manufacturer specific protocol.
	KindCustom ConnectionKind = "custom"
)

// HIDUsagePageBraille is the HID usage page reserved for braille displays.
const HIDUsagePageBraille = 0x41

// Info keys populated on DeviceMatch.Info by the built-in producers.
const (
	InfoKeyProvider      = "provider"
	InfoKeyUsagePage     = "hidUsagePage"
	InfoKeyManufacturer  = "manufacturer"
	InfoKeyProduct       = "product"
	InfoKeyBluetoothName = "bluetoothName"
	InfoKeyBluetoothAddr = "bluetoothAddress"
	InfoKeyUSBID         = "usbID"
	InfoKeyHardwareID    = "hardwareID"
	InfoKeyDevicePath    = "devicePath"
	InfoKeyPort          = "port"
)

// Provider tags carried by inventory records.
const (
	ProviderUSB       = "usb"
	ProviderBluetooth = "bluetooth"
)

// DeviceMatch describes one observed candidate device. Values are immutable
// once constructed and safe to share across goroutines.
type DeviceMatch struct {
	// Kind is the transport class the device was observed on.
	Kind ConnectionKind
	// ID identifies the device; its meaning depends on Kind: a USB
	// VID_xxxx&PID_xxxx pair, a Bluetooth name, or a raw hardware ID.
	ID string
	// Port is the opaque path a driver uses to open the device.
	Port string
	// Info carries all known metadata about the device.
	Info map[string]string
}

// Candidate pairs a driver name with a device it may be able to operate.
type Candidate struct {
	Driver string
	Match  DeviceMatch
}

// DeviceRecord is one raw entry reported by the hardware inventory.
type DeviceRecord struct {
	USBID         string            `yaml:"usb_id"`
	HardwareID    string            `yaml:"hardware_id"`
	BluetoothName string            `yaml:"bluetooth_name"`
	Port          string            `yaml:"port"`
	DevicePath    string            `yaml:"device_path"`
	Provider      string            `yaml:"provider"`
	UsagePage     uint16            `yaml:"usage_page"`
	Info          map[string]string `yaml:"info"`
}

// usagePageValue is the canonical Info encoding for a HID usage page.
func usagePageValue(page uint16) string {
	return fmt.Sprintf("0x%04X", page)
}

// newDeviceMatch builds an immutable match from a raw inventory record.
// The Info map is a fresh copy so a stored match never aliases the record.
func newDeviceMatch(kind ConnectionKind, id, port string, rec DeviceRecord) DeviceMatch {
	info := make(map[string]string, len(rec.Info)+8)
	for k, v := range rec.Info {
		info[k] = v
	}
	if rec.USBID != "" {
		info[InfoKeyUSBID] = rec.USBID
	}
	if rec.HardwareID != "" {
		info[InfoKeyHardwareID] = rec.HardwareID
	}
	if rec.BluetoothName != "" {
		info[InfoKeyBluetoothName] = rec.BluetoothName
	}
	if rec.DevicePath != "" {
		info[InfoKeyDevicePath] = rec.DevicePath
	}
	if rec.Port != "" {
		info[InfoKeyPort] = rec.Port
	}
	if rec.Provider != "" {
		info[InfoKeyProvider] = rec.Provider
	}
	if rec.UsagePage != 0 {
		info[InfoKeyUsagePage] = usagePageValue(rec.UsagePage)
	}
	return DeviceMatch{Kind: kind, ID: id, Port: port, Info: info}
}

// isBrailleHIDMatch reports whether a HID match self-identifies as a braille
// display through the reserved usage page.
func isBrailleHIDMatch(m DeviceMatch) bool {
	return m.Kind == KindHID && m.Info[InfoKeyUsagePage] == usagePageValue(HIDUsagePageBraille)
}

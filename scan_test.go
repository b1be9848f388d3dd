package detect

import (
	"context"
	"reflect"
	"sync"
	"testing"
)

type stubInventory struct {
	mu       sync.Mutex
	usb      []DeviceRecord
	com      []DeviceRecord
	hid      []DeviceRecord
	usbCalls int
	comCalls int
	hidCalls int
	err      error
}

func (s *stubInventory) ListUSBDevices(ctx context.Context) ([]DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usbCalls++
	return s.usb, s.err
}

func (s *stubInventory) ListComPorts(ctx context.Context) ([]DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comCalls++
	return s.com, s.err
}

func (s *stubInventory) ListHIDDevices(ctx context.Context) ([]DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidCalls++
	return s.hid, s.err
}

func (s *stubInventory) calls() (usb, com, hid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usbCalls, s.comCalls, s.hidCalls
}

func newTestEngine(t *testing.T, inv Inventory, hidStandard bool) *Engine {
	t.Helper()
	e, err := NewEngine(EngineConfig{
		Inventory:            inv,
		HIDStandardSupported: func() bool { return hidStandard },
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestDriversForConnectedUSBDevicesEndToEnd(t *testing.T) {
	inv := &stubInventory{
		hid: []DeviceRecord{{
			USBID:      "VID_0001&PID_0002",
			DevicePath: `\\?\hid#vid_0001&pid_0002`,
			Provider:   ProviderUSB,
		}},
	}
	e := newTestEngine(t, inv, true)
	if err := e.Registry().AddUSBDevices("x", KindHID, []string{"VID_0001&PID_0002"}); err != nil {
		t.Fatalf("AddUSBDevices failed: %v", err)
	}

	got, err := e.DriversForConnectedUSBDevices(context.Background(), nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1: %v", len(got), got)
	}
	if got[0].Driver != "x" || got[0].Match.Kind != KindHID || got[0].Match.ID != "VID_0001&PID_0002" {
		t.Fatalf("unexpected candidate: %+v", got[0])
	}
}

func TestUSBMatchOrderCustomThenHIDThenSerial(t *testing.T) {
	inv := &stubInventory{
		usb: []DeviceRecord{{USBID: "VID_AAAA&PID_0001", DevicePath: "usb-path"}},
		hid: []DeviceRecord{{USBID: "VID_BBBB&PID_0001", DevicePath: "hid-path", Provider: ProviderUSB}},
		com: []DeviceRecord{{USBID: "VID_CCCC&PID_0001", Port: "COM3"}},
	}
	e := newTestEngine(t, inv, false)
	reg := e.Registry()
	// Register in reverse device-class order; the class ordering must still
	// dominate.
	if err := reg.AddUSBDevices("serialDrv", KindSerial, []string{"VID_CCCC&PID_0001"}); err != nil {
		t.Fatal(err)
	}
	if err := reg.AddUSBDevices("hidDrv", KindHID, []string{"VID_BBBB&PID_0001"}); err != nil {
		t.Fatal(err)
	}
	if err := reg.AddUSBDevices("customDrv", KindCustom, []string{"VID_AAAA&PID_0001"}); err != nil {
		t.Fatal(err)
	}

	got, err := e.DriversForConnectedUSBDevices(context.Background(), nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	want := []string{"customDrv", "hidDrv", "serialDrv"}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(got), len(want))
	}
	for i, driver := range want {
		if got[i].Driver != driver {
			t.Fatalf("candidate %d = %s, want %s", i, got[i].Driver, driver)
		}
	}
}

func TestVendorDriverWinsOverGenericHIDFallback(t *testing.T) {
	inv := &stubInventory{
		hid: []DeviceRecord{{
			USBID:      "VID_1C71&PID_C006",
			DevicePath: "hid-path",
			Provider:   ProviderUSB,
			UsagePage:  HIDUsagePageBraille,
		}},
	}
	e := newTestEngine(t, inv, true)
	if err := e.Registry().AddUSBDevices("vendor", KindHID, []string{"VID_1C71&PID_C006"}); err != nil {
		t.Fatal(err)
	}

	got, err := e.DriversForConnectedUSBDevices(context.Background(), nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want vendor followed by generic: %v", len(got), got)
	}
	if got[0].Driver != "vendor" {
		t.Fatalf("first candidate = %s, want vendor", got[0].Driver)
	}
	if got[1].Driver != StandardHIDDriverName {
		t.Fatalf("second candidate = %s, want %s", got[1].Driver, StandardHIDDriverName)
	}
}

func TestGenericHIDFallbackDisabled(t *testing.T) {
	inv := &stubInventory{
		hid: []DeviceRecord{{
			USBID:      "VID_0001&PID_0002",
			DevicePath: "hid-path",
			Provider:   ProviderUSB,
			UsagePage:  HIDUsagePageBraille,
		}},
	}
	e := newTestEngine(t, inv, false)
	got, err := e.DriversForConnectedUSBDevices(context.Background(), nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("fallback disabled but got candidates: %v", got)
	}
}

func TestDriverFilterSkipsOtherDrivers(t *testing.T) {
	inv := &stubInventory{
		hid: []DeviceRecord{
			{USBID: "VID_0001&PID_0001", DevicePath: "a", Provider: ProviderUSB},
			{USBID: "VID_0002&PID_0002", DevicePath: "b", Provider: ProviderUSB},
		},
	}
	e := newTestEngine(t, inv, false)
	if err := e.Registry().AddUSBDevices("driverA", KindHID, []string{"VID_0001&PID_0001"}); err != nil {
		t.Fatal(err)
	}
	if err := e.Registry().AddUSBDevices("driverB", KindHID, []string{"VID_0002&PID_0002"}); err != nil {
		t.Fatal(err)
	}

	got, err := e.DriversForConnectedUSBDevices(context.Background(), []string{"driverA"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	for _, c := range got {
		if c.Driver != "driverA" {
			t.Fatalf("filter leaked candidate for %s", c.Driver)
		}
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
}

func TestBluetoothMatchingUsesMatcherOnly(t *testing.T) {
	inv := &stubInventory{
		com: []DeviceRecord{{BluetoothName: "Focus 40 BT 123", Port: "COM7"}},
		hid: []DeviceRecord{{
			HardwareID: "BTHENUM\\Dev_A",
			DevicePath: "bt-hid-path",
			Provider:   ProviderBluetooth,
			Info:       map[string]string{InfoKeyManufacturer: "Humanware", InfoKeyProduct: "Brailliant HID"},
		}},
	}
	e := newTestEngine(t, inv, false)
	if err := RegisterBuiltinDrivers(e.Registry()); err != nil {
		t.Fatalf("builtin registration failed: %v", err)
	}

	got, err := e.DriversForPossibleBluetoothDevices(context.Background(), nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2: %v", len(got), got)
	}
	if got[0].Driver != "freedomScientific" || got[0].Match.Kind != KindSerial {
		t.Fatalf("unexpected serial candidate: %+v", got[0])
	}
	if got[1].Driver != "brailliantB" || got[1].Match.Kind != KindHID {
		t.Fatalf("unexpected hid candidate: %+v", got[1])
	}
}

func TestDemotedDriverEvaluatesLast(t *testing.T) {
	inv := &stubInventory{
		com: []DeviceRecord{{BluetoothName: "Focus 40 BT 123", Port: "COM7"}},
	}
	e := newTestEngine(t, inv, false)
	reg := e.Registry()
	// A maximally permissive matcher registered first would normally win.
	reg.AddBluetoothDevices("catchall", func(DeviceMatch) bool { return true })
	reg.AddBluetoothDevices("focus", BTNamePrefixMatcher("Focus "))
	if err := reg.DemoteToEnd("catchall"); err != nil {
		t.Fatalf("DemoteToEnd failed: %v", err)
	}

	got, err := e.DriversForPossibleBluetoothDevices(context.Background(), nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].Driver != "focus" || got[1].Driver != "catchall" {
		t.Fatalf("demoted driver not last: %v, %v", got[0].Driver, got[1].Driver)
	}
}

func TestDevicesForDriverUnknownDriver(t *testing.T) {
	e := newTestEngine(t, &stubInventory{}, true)
	if _, err := e.USBDevicesForDriver(context.Background(), "ghost"); !IsUnknownDriver(err) {
		t.Fatalf("expected UnknownDriverError, got %v", err)
	}
	if _, err := e.BluetoothDevicesForDriver(context.Background(), "ghost"); !IsUnknownDriver(err) {
		t.Fatalf("expected UnknownDriverError, got %v", err)
	}
	// The standard HID driver is always known.
	if _, err := e.USBDevicesForDriver(context.Background(), StandardHIDDriverName); err != nil {
		t.Fatalf("standard HID driver should be known: %v", err)
	}
	if !e.SupportsAutoDetection(StandardHIDDriverName) {
		t.Fatal("standard HID driver should support auto detection")
	}
}

func TestDevicesForDriverListsBothTransports(t *testing.T) {
	inv := &stubInventory{
		hid: []DeviceRecord{
			{USBID: "VID_0001&PID_0002", DevicePath: "usb-hid", Provider: ProviderUSB},
			{HardwareID: "BTHENUM\\Dev_B", DevicePath: "bt-hid", Provider: ProviderBluetooth},
		},
	}
	e := newTestEngine(t, inv, false)
	if err := e.Registry().AddUSBDevices("dual", KindHID, []string{"VID_0001&PID_0002"}); err != nil {
		t.Fatal(err)
	}
	e.Registry().AddBluetoothDevices("dual", func(m DeviceMatch) bool {
		return m.Kind == KindHID
	})

	usb, err := e.USBDevicesForDriver(context.Background(), "dual")
	if err != nil {
		t.Fatalf("usb query failed: %v", err)
	}
	if len(usb) != 1 || usb[0].Port != "usb-hid" {
		t.Fatalf("unexpected usb devices: %v", usb)
	}
	bt, err := e.BluetoothDevicesForDriver(context.Background(), "dual")
	if err != nil {
		t.Fatalf("bluetooth query failed: %v", err)
	}
	if len(bt) != 1 || bt[0].Port != "bt-hid" {
		t.Fatalf("unexpected bluetooth devices: %v", bt)
	}

	has, err := e.DriverHasPossibleDevices(context.Background(), "dual")
	if err != nil {
		t.Fatalf("has query failed: %v", err)
	}
	if !has {
		t.Fatal("driver should have possible devices")
	}
	has, err = e.DriverHasPossibleDevices(context.Background(), StandardHIDDriverName)
	if err != nil {
		t.Fatalf("has query failed: %v", err)
	}
	if has {
		t.Fatal("standard HID driver should have no devices here")
	}
}

func TestMatchesConstructedOncePerDevice(t *testing.T) {
	inv := &stubInventory{
		hid: []DeviceRecord{{USBID: "VID_0001&PID_0002", DevicePath: "p", Provider: ProviderUSB}},
	}
	e := newTestEngine(t, inv, false)
	// Two drivers claiming the same device share one match value.
	if err := e.Registry().AddUSBDevices("one", KindHID, []string{"VID_0001&PID_0002"}); err != nil {
		t.Fatal(err)
	}
	if err := e.Registry().AddUSBDevices("two", KindHID, []string{"VID_0001&PID_0002"}); err != nil {
		t.Fatal(err)
	}
	got, err := e.DriversForConnectedUSBDevices(context.Background(), nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	// Shared Info map identity proves the match was built once.
	if reflect.ValueOf(got[0].Match.Info).Pointer() != reflect.ValueOf(got[1].Match.Info).Pointer() {
		t.Fatal("match should be constructed once per physical device")
	}
	usbCalls, _, hidCalls := inv.calls()
	if usbCalls != 1 || hidCalls != 1 {
		t.Fatalf("inventory queried more than once per cycle: usb=%d hid=%d", usbCalls, hidCalls)
	}
}

func TestInventoryErrorPropagates(t *testing.T) {
	inv := &stubInventory{err: context.DeadlineExceeded}
	e := newTestEngine(t, inv, false)
	if _, err := e.DriversForConnectedUSBDevices(context.Background(), nil); err == nil {
		t.Fatal("expected inventory error to propagate")
	}
}

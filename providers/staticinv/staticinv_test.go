package staticinv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/braillekit/detect"
)

const sampleInventory = `
usb_devices:
  - usb_id: VID_0F4E&PID_0114
    device_path: \\?\usb#vid_0f4e&pid_0114
    provider: usb
com_ports:
  - usb_id: VID_0403&PID_6001
    port: COM3
  - bluetooth_name: Focus 40 BT 123
    port: COM7
hid_devices:
  - usb_id: VID_1C71&PID_C006
    device_path: \\?\hid#vid_1c71&pid_c006
    provider: usb
    usage_page: 0x41
    info:
      manufacturer: Humanware
`

func writeInventory(t *testing.T, content string) *Provider {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return New(path)
}

func TestProviderListsRecords(t *testing.T) {
	p := writeInventory(t, sampleInventory)
	ctx := context.Background()

	usb, err := p.ListUSBDevices(ctx)
	require.NoError(t, err)
	require.Len(t, usb, 1)
	require.Equal(t, "VID_0F4E&PID_0114", usb[0].USBID)

	com, err := p.ListComPorts(ctx)
	require.NoError(t, err)
	require.Len(t, com, 2)
	require.Equal(t, "Focus 40 BT 123", com[1].BluetoothName)

	hid, err := p.ListHIDDevices(ctx)
	require.NoError(t, err)
	require.Len(t, hid, 1)
	require.Equal(t, uint16(detect.HIDUsagePageBraille), hid[0].UsagePage)
	require.Equal(t, "Humanware", hid[0].Info["manufacturer"])
}

func TestProviderMissingFile(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := p.ListUSBDevices(context.Background())
	require.Error(t, err)
}

func TestProviderMalformedYAML(t *testing.T) {
	p := writeInventory(t, "usb_devices: {not: [valid")
	_, err := p.ListComPorts(context.Background())
	require.Error(t, err)
}

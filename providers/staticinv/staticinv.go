// Package staticinv implements detect.Inventory from a YAML snapshot file.
// It stands in for the OS enumeration collaborator in the CLI and in test
// rigs; the file is re-read on every list call so edits show up on the next
// scan cycle.
package staticinv

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/braillekit/detect"
)

// Provider reads device records from a YAML file.
type Provider struct {
	path string
}

type inventoryFile struct {
	USBDevices []detect.DeviceRecord `yaml:"usb_devices"`
	ComPorts   []detect.DeviceRecord `yaml:"com_ports"`
	HIDDevices []detect.DeviceRecord `yaml:"hid_devices"`
}

// New creates a Provider backed by the given snapshot file.
func New(path string) *Provider {
	return &Provider{path: path}
}

func (p *Provider) load() (*inventoryFile, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, errors.Wrap(err, "read inventory file failed")
	}
	var file inventoryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrap(err, "parse inventory file failed")
	}
	return &file, nil
}

// ListUSBDevices returns the snapshot's USB device records.
func (p *Provider) ListUSBDevices(ctx context.Context) ([]detect.DeviceRecord, error) {
	file, err := p.load()
	if err != nil {
		return nil, err
	}
	return file.USBDevices, nil
}

// ListComPorts returns the snapshot's COM port records.
func (p *Provider) ListComPorts(ctx context.Context) ([]detect.DeviceRecord, error) {
	file, err := p.load()
	if err != nil {
		return nil, err
	}
	return file.ComPorts, nil
}

// ListHIDDevices returns the snapshot's HID device records.
func (p *Provider) ListHIDDevices(ctx context.Context) ([]detect.DeviceRecord, error) {
	file, err := p.load()
	if err != nil {
		return nil, err
	}
	return file.HIDDevices, nil
}

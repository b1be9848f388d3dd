package detect

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DriverRegistration is one driver's detection data as loaded from a
// registration file. Bluetooth matching from files is limited to name
// prefixes; richer matchers are registered in code.
type DriverRegistration struct {
	Name              string                      `yaml:"name"`
	USB               map[ConnectionKind][]string `yaml:"usb"`
	BluetoothPrefixes []string                    `yaml:"bluetooth_prefixes"`
	// EvaluateLast demotes the driver to the end of the evaluation order.
	EvaluateLast bool `yaml:"evaluate_last"`
}

type registrationFile struct {
	Drivers []DriverRegistration `yaml:"drivers"`
}

// LoadRegistrations reads driver registrations from a YAML file and applies
// them to the registry, after the built-in tables or instead of them. The
// whole file is validated first: an unknown connection kind or a malformed
// USB identifier anywhere rejects the file and leaves the registry unchanged.
func LoadRegistrations(r *Registry, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read registration file failed")
	}
	var file registrationFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return errors.Wrap(err, "parse registration file failed")
	}
	for _, reg := range file.Drivers {
		if reg.Name == "" {
			return errors.Errorf("registration file %s: driver with empty name", path)
		}
		for kind, ids := range reg.USB {
			switch kind {
			case KindHID, KindSerial, KindCustom:
			default:
				return errors.Errorf("registration file %s: driver %s: unknown connection kind %q",
					path, reg.Name, kind)
			}
			var malformed []string
			for _, id := range ids {
				if !usbIDPattern.MatchString(id) {
					malformed = append(malformed, id)
				}
			}
			if len(malformed) > 0 {
				return errors.Wrapf(
					&InvalidIdentifierError{Driver: reg.Name, Kind: kind, IDs: malformed},
					"registration file %s", path)
			}
		}
	}
	for _, reg := range file.Drivers {
		for kind, ids := range reg.USB {
			if err := r.AddUSBDevices(reg.Name, kind, ids); err != nil {
				return errors.Wrapf(err, "registration file %s", path)
			}
		}
		if len(reg.BluetoothPrefixes) > 0 {
			r.AddBluetoothDevices(reg.Name, BTNamePrefixMatcher(reg.BluetoothPrefixes...))
		}
		if reg.EvaluateLast {
			if err := r.DemoteToEnd(reg.Name); err != nil {
				return errors.Wrapf(err, "registration file %s: driver %s", path, reg.Name)
			}
		}
		log.Debug().Str("driver", reg.Name).Msg("detect: loaded driver registration")
	}
	return nil
}

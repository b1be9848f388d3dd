package detect

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// BTNamePrefixMatcher matches Bluetooth devices whose reported name starts
// with any of the given prefixes.
func BTNamePrefixMatcher(prefixes ...string) BluetoothMatcher {
	return func(m DeviceMatch) bool {
		for _, prefix := range prefixes {
			if strings.HasPrefix(m.ID, prefix) {
				return true
			}
		}
		return false
	}
}

// BTAddressRangeMatcher matches Bluetooth devices whose address, carried in
// the bluetoothAddress info key as hexadecimal, falls in [lo, hi].
func BTAddressRangeMatcher(lo, hi uint64) BluetoothMatcher {
	return func(m DeviceMatch) bool {
		raw, ok := m.Info[InfoKeyBluetoothAddr]
		if !ok {
			return false
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(raw, "0x"), 16, 64)
		if err != nil {
			return false
		}
		return lo <= addr && addr <= hi
	}
}

func anyMatcher(matchers ...BluetoothMatcher) BluetoothMatcher {
	return func(m DeviceMatch) bool {
		for _, match := range matchers {
			if match(m) {
				return true
			}
		}
		return false
	}
}

// RegisterBuiltinDrivers loads detection data for the drivers shipped with
// the engine. Add-on drivers register through the same Registry calls before
// the first scan.
func RegisterBuiltinDrivers(r *Registry) error {
	type usbReg struct {
		driver string
		kind   ConnectionKind
		ids    []string
	}
	regs := []usbReg{
		{"alva", KindHID, []string{
			"VID_0798&PID_0640", // BC640
			"VID_0798&PID_0680", // BC680
			"VID_0798&PID_0699", // USB protocol converter
		}},
		{"baum", KindHID, []string{
			"VID_0904&PID_3001", // RefreshaBraille 18
			"VID_0904&PID_6101", // VarioUltra 20
			"VID_0904&PID_6103", // VarioUltra 32
			"VID_0904&PID_6102", // VarioUltra 40
			"VID_0904&PID_4004", // Pronto! 18 V3
			"VID_0904&PID_4005", // Pronto! 40 V3
			"VID_0904&PID_4007", // Pronto! 18 V4
			"VID_0904&PID_4008", // Pronto! 40 V4
			"VID_0904&PID_6001", // SuperVario2 40
			"VID_0904&PID_6002", // SuperVario2 24
			"VID_0904&PID_6003", // SuperVario2 32
			"VID_0904&PID_6004", // SuperVario2 64
			"VID_0904&PID_6005", // SuperVario2 80
			"VID_0904&PID_6006", // Brailliant2 40
			"VID_0904&PID_6007", // Brailliant2 24
			"VID_0904&PID_6008", // Brailliant2 32
			"VID_0904&PID_6009", // Brailliant2 64
			"VID_0904&PID_600A", // Brailliant2 80
			"VID_0904&PID_6201", // Vario 340
			"VID_0483&PID_A1D3", // Orbit Reader 20
			"VID_0904&PID_6301", // Vario 4
		}},
		{"baum", KindSerial, []string{
			"VID_0403&PID_FE70", // Vario 40
			"VID_0403&PID_FE71", // PocketVario
			"VID_0403&PID_FE72", // SuperVario/Brailliant 40
			"VID_0403&PID_FE73", // SuperVario/Brailliant 32
			"VID_0403&PID_FE74", // SuperVario/Brailliant 64
			"VID_0403&PID_FE75", // SuperVario/Brailliant 80
			"VID_0904&PID_2001", // EcoVario 24
			"VID_0904&PID_2002", // EcoVario 40
			"VID_0904&PID_2007", // VarioConnect/BrailleConnect 40
			"VID_0904&PID_2008", // VarioConnect/BrailleConnect 32
			"VID_0904&PID_2009", // VarioConnect/BrailleConnect 24
			"VID_0904&PID_2010", // VarioConnect/BrailleConnect 64
			"VID_0904&PID_2011", // VarioConnect/BrailleConnect 80
			"VID_0904&PID_2014", // EcoVario 32
			"VID_0904&PID_2015", // EcoVario 64
			"VID_0904&PID_2016", // EcoVario 80
			"VID_0904&PID_3000", // RefreshaBraille 18
		}},
		{"brailleNote", KindSerial, []string{
			"VID_1C71&PID_C004", // Apex
		}},
		{"brailliantB", KindHID, []string{
			"VID_1C71&PID_C111", // Mantis Q 40
			"VID_1C71&PID_C101", // Chameleon 20
			"VID_1C71&PID_C121", // Humanware BrailleOne 20 HID
			"VID_1C71&PID_CE01", // NLS eReader 20 HID
			"VID_1C71&PID_C006", // Brailliant BI 32, 40 and 80
			"VID_1C71&PID_C022", // Brailliant BI 14
			"VID_1C71&PID_C131", // Brailliant BI 40X
			"VID_1C71&PID_C141", // Brailliant BI 20X
			"VID_1C71&PID_C00A", // BrailleNote Touch
			"VID_1C71&PID_C00E", // BrailleNote Touch v2
		}},
		{"brailliantB", KindSerial, []string{
			"VID_1C71&PID_C005", // Brailliant BI 32, 40 and 80
			"VID_1C71&PID_C021", // Brailliant BI 14
		}},
		{"eurobraille", KindHID, []string{
			"VID_C251&PID_1122", // Esys (version < 3.0, no SD card
			"VID_C251&PID_1123", // Esys (version >= 3.0, with HID keyboard, no SD card
			"VID_C251&PID_1124", // Esys (version < 3.0, with SD card
			"VID_C251&PID_1125", // Esys (version >= 3.0, with HID keyboard, with SD card
			"VID_C251&PID_1126", // Esys (version >= 3.0, no SD card
			"VID_C251&PID_1128", // Esys (version >= 3.0, with SD card
			"VID_C251&PID_1130", // Esytime
		}},
		{"freedomScientific", KindCustom, []string{
			"VID_0F4E&PID_0100", // Focus 1
			"VID_0F4E&PID_0111", // PAC Mate
			"VID_0F4E&PID_0112", // Focus 2
			"VID_0F4E&PID_0114", // Focus Blue
		}},
		{"handyTech", KindSerial, []string{
			"VID_0403&PID_6001", // FTDI chip
			"VID_0921&PID_1200", // GoHubs chip
		}},
		// Newer Handy Tech displays have a native HID processor.
		{"handyTech", KindHID, []string{
			"VID_1FE4&PID_0054", // Active Braille
			"VID_1FE4&PID_0055", // Connect Braille
			"VID_1FE4&PID_0061", // Actilino
			"VID_1FE4&PID_0064", // Active Star 40
			"VID_1FE4&PID_0081", // Basic Braille 16
			"VID_1FE4&PID_0082", // Basic Braille 20
			"VID_1FE4&PID_0083", // Basic Braille 32
			"VID_1FE4&PID_0084", // Basic Braille 40
			"VID_1FE4&PID_008A", // Basic Braille 48
			"VID_1FE4&PID_0086", // Basic Braille 64
			"VID_1FE4&PID_0087", // Basic Braille 80
			"VID_1FE4&PID_008B", // Basic Braille 160
			"VID_1FE4&PID_008C", // Basic Braille 84
			"VID_1FE4&PID_0093", // Basic Braille Plus 32
			"VID_1FE4&PID_0094", // Basic Braille Plus 40
		}},
		// Some older Handy Tech displays use a HID converter and an
		// internal serial interface.
		{"handyTech", KindHID, []string{
			"VID_1FE4&PID_0003", // USB-HID adapter
			"VID_1FE4&PID_0074", // Braille Star 40
			"VID_1FE4&PID_0044", // Easy Braille
		}},
		// Bulk devices.
		{"hims", KindCustom, []string{
			"VID_045E&PID_930A", // Braille Sense & Smart Beetle
			"VID_045E&PID_930B", // Braille EDGE 40
		}},
		// Sync Braille, serial device.
		{"hims", KindSerial, []string{
			"VID_0403&PID_6001",
		}},
		{"nattiqbraille", KindSerial, []string{
			"VID_2341&PID_8036", // Atmel-based USB Serial for Nattiq nBraille
		}},
		{"superBrl", KindSerial, []string{
			"VID_10C4&PID_EA60", // SuperBraille 3.2
		}},
		{"seikantk", KindHID, []string{
			"VID_10C4&PID_EA80", // Seika Notetaker
		}},
	}
	for _, reg := range regs {
		if err := r.AddUSBDevices(reg.driver, reg.kind, reg.ids); err != nil {
			return errors.Wrapf(err, "builtin registration for %s failed", reg.driver)
		}
	}

	r.AddBluetoothDevices("alva", BTNamePrefixMatcher("ALVA "))
	r.AddBluetoothDevices("baum", BTNamePrefixMatcher(
		"Baum SuperVario",
		"Baum PocketVario",
		"Baum SVario",
		"HWG Brailliant",
		"Refreshabraille",
		"VarioConnect",
		"BrailleConnect",
		"Pronto!",
		"VarioUltra",
		"Orbit Reader 20",
		"Vario 4",
	))
	r.AddBluetoothDevices("brailleNote", anyMatcher(
		BTAddressRangeMatcher(0x0025EC000000, 0x0025EC01869F), // Apex
		BTNamePrefixMatcher("Braillenote"),
	))
	r.AddBluetoothDevices("brailliantB", func(m DeviceMatch) bool {
		if m.Kind == KindSerial {
			return strings.HasPrefix(m.ID, "Brailliant B") ||
				m.ID == "Brailliant 80" ||
				strings.Contains(m.ID, "BrailleNote Touch")
		}
		if m.Kind != KindHID || m.Info[InfoKeyManufacturer] != "Humanware" {
			return false
		}
		switch m.Info[InfoKeyProduct] {
		case "Brailliant HID",
			"APH Chameleon 20",
			"APH Mantis Q40",
			"Humanware BrailleOne",
			"NLS eReader",
			"NLS eReader Humanware",
			"Brailliant BI 40X",
			"Brailliant BI 20X":
			return true
		}
		return false
	})
	r.AddBluetoothDevices("eurobraille", BTNamePrefixMatcher("Esys"))
	r.AddBluetoothDevices("freedomScientific", BTNamePrefixMatcher(
		"F14", "Focus 14 BT",
		"Focus 40 BT",
		"Focus 80 BT",
	))
	r.AddBluetoothDevices("handyTech", BTNamePrefixMatcher(
		"Actilino AL",
		"Active Braille AB",
		"Active Star AS",
		"Basic Braille BB",
		"Basic Braille Plus BP",
		"Braille Star 40 BS",
		"Braillino BL",
		"Braille Wave BW",
		"Easy Braille EBR",
	))
	r.AddBluetoothDevices("hims", BTNamePrefixMatcher(
		"BrailleSense",
		"BrailleEDGE",
		"SmartBeetle",
	))
	r.AddBluetoothDevices("seikantk", anyMatcher(
		BTNamePrefixMatcher("TSM"),
		func(m DeviceMatch) bool {
			return m.Info[InfoKeyProduct] == "Seika Notetaker"
		},
	))
	return nil
}

package detect

import "testing"

func TestRegisterBuiltinDrivers(t *testing.T) {
	r := NewRegistry()
	if err := RegisterBuiltinDrivers(r); err != nil {
		t.Fatalf("RegisterBuiltinDrivers failed: %v", err)
	}
	for _, driver := range []string{
		"alva", "baum", "brailleNote", "brailliantB", "eurobraille",
		"freedomScientific", "handyTech", "hims", "nattiqbraille",
		"superBrl", "seikantk",
	} {
		if !r.SupportsAutoDetection(driver) {
			t.Errorf("driver %s missing from builtin registrations", driver)
		}
	}
}

func TestBTNamePrefixMatcher(t *testing.T) {
	match := BTNamePrefixMatcher("ALVA ", "Esys")
	if !match(DeviceMatch{ID: "ALVA BC640"}) {
		t.Fatal("prefix should match")
	}
	if !match(DeviceMatch{ID: "Esys 12"}) {
		t.Fatal("second prefix should match")
	}
	if match(DeviceMatch{ID: "Focus 40 BT"}) {
		t.Fatal("unrelated name should not match")
	}
}

func TestBTAddressRangeMatcher(t *testing.T) {
	match := BTAddressRangeMatcher(0x0025EC000000, 0x0025EC01869F)
	cases := []struct {
		addr string
		want bool
	}{
		{"0025EC000000", true},
		{"0x0025EC018000", true},
		{"0025EC01869F", true},
		{"0025EC0186A0", false},
		{"0025EB000000", false},
		{"not-hex", false},
		{"", false},
	}
	for _, tc := range cases {
		m := DeviceMatch{Info: map[string]string{InfoKeyBluetoothAddr: tc.addr}}
		if got := match(m); got != tc.want {
			t.Errorf("addr %q: match = %v, want %v", tc.addr, got, tc.want)
		}
	}
	if match(DeviceMatch{Info: map[string]string{}}) {
		t.Error("missing address should not match")
	}
}

func TestBrailliantBMatcher(t *testing.T) {
	r := NewRegistry()
	if err := RegisterBuiltinDrivers(r); err != nil {
		t.Fatal(err)
	}
	entry, err := r.lookup("brailliantB")
	if err != nil {
		t.Fatal(err)
	}
	serial := DeviceMatch{Kind: KindSerial, ID: "Brailliant BI 40"}
	if !entry.btMatch(serial) {
		t.Fatal("serial Brailliant name should match")
	}
	hid := DeviceMatch{Kind: KindHID, Info: map[string]string{
		InfoKeyManufacturer: "Humanware",
		InfoKeyProduct:      "APH Mantis Q40",
	}}
	if !entry.btMatch(hid) {
		t.Fatal("Humanware HID product should match")
	}
	wrongVendor := DeviceMatch{Kind: KindHID, Info: map[string]string{
		InfoKeyManufacturer: "Acme",
		InfoKeyProduct:      "APH Mantis Q40",
	}}
	if entry.btMatch(wrongVendor) {
		t.Fatal("non-Humanware device must not match")
	}
}

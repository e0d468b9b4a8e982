package packet

import "testing"

func TestClosest(t *testing.T) {
	testCases := []struct {
		protocol int32
		want     Version
	}{
		{0, V1_8},
		{47, V1_8},
		{107, V1_8},
		{340, V1_12_2},
		{760, V1_16_5},
		{765, V1_20_3},
		{766, V1_20_3},
		{999, V1_21},
	}
	for _, tC := range testCases {
		if got := Closest(tC.protocol); got != tC.want {
			t.Errorf("Closest(%d) = %s, want %s", tC.protocol, got, tC.want)
		}
	}
}

func TestVersion_String(t *testing.T) {
	if got := V1_20_3.String(); got != "1.20.4" {
		t.Errorf("V1_20_3.String() = %q", got)
	}
	if got := Version(5).String(); got != "protocol 5" {
		t.Errorf("Version(5).String() = %q", got)
	}
}

func TestVersion_Ranges(t *testing.T) {
	if !V1_20_2.HasConfiguration() || V1_20.HasConfiguration() {
		t.Error("configuration starts with 1.20.2")
	}
	if !V1_16_5.Between(V1_12_2, V1_20) || V1_21.Between(V1_8, V1_20_3) {
		t.Error("Between is not inclusive of its bounds only")
	}
	if Version(760).IsSupported() {
		t.Error("protocol 760 reported as supported")
	}
}

package packet

import "strconv"

// Version is a protocol version number as sent in the handshake.
type Version int32

// Supported versions, oldest first. Releases that share a protocol number
// (1.20 and 1.20.1, 1.20.3 and 1.20.4, 1.21 and 1.21.1) share a constant.
const (
	V1_8    Version = 47
	V1_12_2 Version = 340
	V1_16_5 Version = 754
	V1_20   Version = 763
	V1_20_2 Version = 764
	V1_20_3 Version = 765
	V1_21   Version = 767

	MinVersion = V1_8
	MaxVersion = V1_21
)

var versions = []Version{V1_8, V1_12_2, V1_16_5, V1_20, V1_20_2, V1_20_3, V1_21}

var versionNames = map[Version]string{
	V1_8:    "1.8",
	V1_12_2: "1.12.2",
	V1_16_5: "1.16.5",
	V1_20:   "1.20.1",
	V1_20_2: "1.20.2",
	V1_20_3: "1.20.4",
	V1_21:   "1.21.1",
}

// Versions returns every supported version in ascending order.
func Versions() []Version {
	return append([]Version(nil), versions...)
}

// IsSupported reports whether v is one of the supported protocol numbers.
func (v Version) IsSupported() bool {
	_, ok := versionNames[v]
	return ok
}

func (v Version) AtLeast(o Version) bool {
	return v >= o
}

func (v Version) Before(o Version) bool {
	return v < o
}

// Between reports whether lo <= v <= hi.
func (v Version) Between(lo, hi Version) bool {
	return v >= lo && v <= hi
}

// HasConfiguration reports whether the login is followed by a configuration phase.
func (v Version) HasConfiguration() bool {
	return v >= V1_20_2
}

// NetworkNBT reports whether root NBT tags are sent without a name.
func (v Version) NetworkNBT() bool {
	return v >= V1_20_2
}

func (v Version) String() string {
	if name, ok := versionNames[v]; ok {
		return name
	}
	return "protocol " + strconv.Itoa(int(v))
}

// Closest maps any protocol number to the newest supported version not
// above it, or MinVersion for older clients. Status and login ids are the
// same in every version, so this is enough to answer or reject a client
// whose version is not supported.
func Closest(protocol int32) Version {
	best := MinVersion
	for _, v := range versions {
		if int32(v) <= protocol {
			best = v
		}
	}
	return best
}

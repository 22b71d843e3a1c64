package anki

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// PackageVersion is the generation recorded in the "meta" member.
type PackageVersion int

const (
	VersionUnknown PackageVersion = 0
	VersionLegacy1 PackageVersion = 1
	VersionLegacy2 PackageVersion = 2
	VersionLatest  PackageVersion = 3
)

// SupportedVersion is the only generation this package reads and writes.
const SupportedVersion = VersionLegacy2

func (v PackageVersion) String() string {
	switch v {
	case VersionUnknown:
		return "UNKNOWN"
	case VersionLegacy1:
		return "LEGACY_1"
	case VersionLegacy2:
		return "LEGACY_2"
	case VersionLatest:
		return "LATEST"
	default:
		return fmt.Sprintf("PackageVersion(%d)", int(v))
	}
}

// metaVersionField is the protobuf field number of the version.
const metaVersionField protowire.Number = 1

// decodeMeta reads the version from a serialized PackageMetadata message.
// Unknown fields are skipped; an absent version is VersionUnknown.
func decodeMeta(b []byte) (PackageVersion, error) {
	version := VersionUnknown
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, fmt.Errorf("bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if num == metaVersionField && typ == protowire.VarintType {
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return 0, fmt.Errorf("bad version: %w", protowire.ParseError(m))
			}
			version = PackageVersion(v)
			b = b[m:]
			continue
		}

		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return 0, fmt.Errorf("bad field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return version, nil
}

func encodeMeta(v PackageVersion) []byte {
	var b []byte
	b = protowire.AppendTag(b, metaVersionField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v))
	return b
}

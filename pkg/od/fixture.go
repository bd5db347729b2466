package od

import (
	"fmt"
	"regexp"
	"strconv"

	"gopkg.in/ini.v1"
)

// LoadFixture reads a small ini-formatted object dictionary fixture used
// by tests and the demo CLI to exercise DOMAIN-forced segmented
// downloads without a full EDS/DCF file. Sections are named "index" or
// "index.subindex" in hex, e.g.:
//
//	[1008]
//	name = DeviceName
//	type = 0x0A
//
//	[1F50.1]
//	name = ProgramData
//	type = 0x02
//
// This is intentionally not an EDS/DCF parser: there is no ObjectType,
// AccessType or PDO mapping support, only what the client core needs.
func LoadFixture(path string) (*ObjectDictionary, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("od: loading fixture %s: %w", path, err)
	}

	matchIndex := regexp.MustCompile(`^[0-9A-Fa-f]{1,4}$`)
	matchSubindex := regexp.MustCompile(`^([0-9A-Fa-f]{1,4})\.([0-9A-Fa-f]{1,2})$`)

	dict := New()
	for _, section := range cfg.Sections() {
		name := section.Name()

		var index uint64
		var subindex uint64
		switch {
		case matchIndex.MatchString(name):
			index, err = strconv.ParseUint(name, 16, 16)
			if err != nil {
				return nil, fmt.Errorf("od: section %q: %w", name, err)
			}
		case matchSubindex.MatchString(name):
			m := matchSubindex.FindStringSubmatch(name)
			index, err = strconv.ParseUint(m[1], 16, 16)
			if err != nil {
				return nil, fmt.Errorf("od: section %q: %w", name, err)
			}
			subindex, err = strconv.ParseUint(m[2], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("od: section %q: %w", name, err)
			}
		default:
			continue
		}

		dataType := uint64(0)
		if key := section.Key("type"); key.Value() != "" {
			dataType, err = strconv.ParseUint(key.Value(), 0, 8)
			if err != nil {
				return nil, fmt.Errorf("od: section %q: type: %w", name, err)
			}
		}

		dict.Add(Variable{
			Index:    uint16(index),
			Subindex: uint8(subindex),
			DataType: DataType(dataType),
			Name:     section.Key("name").String(),
		})
	}

	return dict, nil
}

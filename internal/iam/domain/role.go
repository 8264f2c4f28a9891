package domain

import (
	"fmt"
	"math/bits"
	"sort"
	"strconv"
	"strings"
)

// RoleMap translates role bitmask bits into role names. The mapping is
// deployment configuration, parsed from a string like "1:user,2:admin,4:auditor"
// where each key is a power of two.
type RoleMap map[uint64]string

// ParseRoleMap parses the configuration form. Empty input yields an empty
// map, which resolves every mask to no roles.
func ParseRoleMap(s string) (RoleMap, error) {
	m := RoleMap{}
	s = strings.TrimSpace(s)
	if s == "" {
		return m, nil
	}

	for _, pair := range strings.Split(s, ",") {
		bit, name, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, fmt.Errorf("domain: role map entry %q: want bit:name", pair)
		}

		v, err := strconv.ParseUint(strings.TrimSpace(bit), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("domain: role map entry %q: %w", pair, err)
		}
		if v == 0 || bits.OnesCount64(v) != 1 {
			return nil, fmt.Errorf("domain: role map entry %q: bit must be a power of two", pair)
		}

		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("domain: role map entry %q: empty role name", pair)
		}
		m[v] = name
	}
	return m, nil
}

// Resolve returns the role names whose bits are set in mask, lowest bit
// first. Unmapped bits are ignored.
func (m RoleMap) Resolve(mask uint64) []string {
	if len(m) == 0 || mask == 0 {
		return nil
	}

	bitsSet := make([]uint64, 0, len(m))
	for bit := range m {
		if mask&bit != 0 {
			bitsSet = append(bitsSet, bit)
		}
	}
	sort.Slice(bitsSet, func(i, j int) bool { return bitsSet[i] < bitsSet[j] })

	names := make([]string, 0, len(bitsSet))
	for _, bit := range bitsSet {
		names = append(names, m[bit])
	}
	return names
}

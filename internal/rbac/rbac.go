// Package rbac holds the bitflag permission sets for the three scopes an
// account can hold rights in: the whole platform, a single community and
// a single journal.
//
// Every set is an open 32-bit value. Bits without a name are kept as-is
// when decoding so rows written by newer code never fail to load.
package rbac

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

type flags interface {
	~uint32
}

func contains[T flags](held, required T) bool {
	return held&required == required
}

type named[T flags] struct {
	bit  T
	name string
}

func format[T flags](value T, names []named[T]) string {
	if value == 0 {
		return "0"
	}
	var parts []string
	rest := value
	for _, n := range names {
		if value&n.bit == n.bit {
			parts = append(parts, n.name)
			rest &^= n.bit
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

func count[T flags](value T) int {
	return bits.OnesCount32(uint32(value))
}

// decode accepts a JSON number or a numeric string. Values wider than 32
// bits keep their low 32 bits.
func decode(data []byte) (uint32, error) {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return 0, nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		raw = strings.TrimSpace(s)
	}
	if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return uint32(v), nil
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return uint32(v), nil
	}
	return 0, fmt.Errorf("rbac: invalid permission value %q", raw)
}

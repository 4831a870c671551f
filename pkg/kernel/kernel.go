package kernel

import (
	"fmt"
	"strconv"
)

// Version
// 内核版本, 例如 6.8.0-41-generic 为 {Kernel: 6, Major: 8, Minor: 0, Flavor: "-41-generic"}。
type Version struct {
	Kernel int
	Major  int
	Minor  int
	Flavor string
}

func (v Version) String() string {
	return strconv.Itoa(v.Kernel) + "." + strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor) + v.Flavor
}

func Compare(a, b Version) int {
	if a.Kernel > b.Kernel {
		return 1
	} else if a.Kernel < b.Kernel {
		return -1
	}

	if a.Major > b.Major {
		return 1
	} else if a.Major < b.Major {
		return -1
	}

	if a.Minor > b.Minor {
		return 1
	} else if a.Minor < b.Minor {
		return -1
	}

	return 0
}

// Check
// reports whether the running kernel is at least k.major.minor.
func Check(k, major, minor int) (bool, error) {
	v, err := Get()
	if err != nil {
		return false, err
	}
	if Compare(*v, Version{Kernel: k, Major: major, Minor: minor}) < 0 {
		return false, nil
	}
	return true, nil
}

func Parse(release string) (*Version, error) {
	var (
		v       Version
		partial string
	)
	parsed, _ := fmt.Sscanf(release, "%d.%d%s", &v.Kernel, &v.Major, &partial)
	if parsed < 2 {
		return nil, fmt.Errorf("kernel: cannot parse version %q", release)
	}
	if parsed, _ = fmt.Sscanf(partial, ".%d%s", &v.Minor, &v.Flavor); parsed < 1 {
		v.Flavor = partial
	}
	return &v, nil
}

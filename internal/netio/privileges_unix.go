//go:build !windows

package netio

import (
	"fmt"
	"os"
	"strings"

	"github.com/tracelattice/tracelattice/pkg/perr"
)

// CheckPrivileges verifies the process can open raw sockets: root, or on
// Linux a process holding CAP_NET_RAW.
func CheckPrivileges() error {
	if os.Geteuid() == 0 {
		return nil
	}
	if hasNetRawCapability() {
		return nil
	}
	return perr.Wrap(perr.ErrPermissionDenied, fmt.Errorf(
		"raw socket access requires elevated privileges\n\nrun with: sudo %s",
		strings.Join(os.Args, " ")))
}

// hasNetRawCapability reads the process's effective capability mask from
// /proc/self/status; this file (and capabilities generally) is a Linux
// concept, so it silently returns false on other Unix systems.
func hasNetRawCapability() bool {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "CapEff:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return false
		}
		var capMask uint64
		if _, err := fmt.Sscanf(fields[1], "%x", &capMask); err != nil {
			return false
		}
		const capNetRaw = 1 << 13
		return capMask&capNetRaw != 0
	}
	return false
}

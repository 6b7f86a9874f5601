//go:build windows

package netio

import (
	"fmt"
	"os"
	"strings"

	"github.com/tracelattice/tracelattice/pkg/perr"
	"golang.org/x/sys/windows"
)

// CheckPrivileges verifies the process is running elevated (Administrator),
// required for raw socket access on Windows.
func CheckPrivileges() error {
	if isAdmin() {
		return nil
	}
	return perr.Wrap(perr.ErrPermissionDenied, fmt.Errorf(
		"raw socket access requires Administrator privileges\n\nrun as Administrator or use: runas /user:Administrator %s",
		strings.Join(os.Args, " ")))
}

func isAdmin() bool {
	var sid *windows.SID
	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	token := windows.Token(0)
	member, err := token.IsMember(sid)
	if err != nil {
		return false
	}
	return member
}

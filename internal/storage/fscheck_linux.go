//go:build linux

package storage

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func detectFilesystemType(path string) (string, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return "", fmt.Errorf("statfs %q: %w", path, err)
	}

	switch uint64(stat.Type) {
	case unix.NFS_SUPER_MAGIC:
		return "nfs", nil
	case unix.CIFS_SUPER_MAGIC:
		return "cifs", nil
	case unix.SMB_SUPER_MAGIC:
		return "smbfs", nil
	case unix.SMB2_SUPER_MAGIC:
		return "smb2", nil
	case unix.FUSE_SUPER_MAGIC:
		return "fuse", nil
	default:
		return fmt.Sprintf("0x%x", uint64(stat.Type)), nil
	}
}

package fsutil

import (
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// Ownership is the uid, gid and permission bits of a file.
type Ownership struct {
	UID  int         `json:"uid"`
	GID  int         `json:"gid"`
	Mode fs.FileMode `json:"mode"`
}

// String formats the ownership the way ls -n would show the interesting parts.
func (o Ownership) String() string {
	return fmt.Sprintf("%d:%d %04o", o.UID, o.GID, uint32(o.Mode)&0o7777)
}

// Stat returns the ownership of path. The error satisfies os.IsNotExist when
// the file is missing.
func Stat(path string) (Ownership, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Ownership{}, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	return Ownership{
		UID:  int(st.Uid),
		GID:  int(st.Gid),
		Mode: fs.FileMode(st.Mode & 0o7777),
	}, nil
}

// Apply sets the ownership and permission bits of path to o.
func Apply(path string, o Ownership) error {
	cur, err := Stat(path)
	if err != nil {
		return fmt.Errorf("fsutil: %w", err)
	}
	if cur.UID != o.UID || cur.GID != o.GID {
		if err := unix.Chown(path, o.UID, o.GID); err != nil {
			return fmt.Errorf("fsutil: chown %s: %w", path, err)
		}
	}
	if cur.Mode != o.Mode {
		if err := unix.Chmod(path, uint32(o.Mode)); err != nil {
			return fmt.Errorf("fsutil: chmod %s: %w", path, err)
		}
	}
	return nil
}

// Exists reports whether path exists, following symlinks.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

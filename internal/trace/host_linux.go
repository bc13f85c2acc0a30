//go:build linux

package trace

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// AtFDCWD makes Open resolve relative paths against the working directory.
const AtFDCWD = unix.AT_FDCWD

// OpenReadOnly opens a file for reading, close-on-exec like os.Open.
const OpenReadOnly = unix.O_RDONLY | unix.O_CLOEXEC

// NewSystem returns the host and resolver backed by the running kernel.
func NewSystem() (Host, Resolver, error) {
	return unixHost{}, procResolver{root: "/proc/self/fd"}, nil
}

type unixHost struct{}

func (unixHost) Open(path string, dirfd int, flags int, mode uint32) (int, error) {
	return unix.Openat(dirfd, path, flags, mode)
}

func (unixHost) Close(fd int) error {
	return unix.Close(fd)
}

func (unixHost) Read(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

func (unixHost) Readv(fd int, iovs [][]byte) (int, error) {
	return unix.Readv(fd, iovs)
}

func (unixHost) Pread(fd int, buf []byte, offset int64) (int, error) {
	return unix.Pread(fd, buf, offset)
}

// procResolver describes descriptors through the /proc fd links.
type procResolver struct {
	root string
}

const deletedSuffix = " (deleted)"

func (r procResolver) link(fd int) (string, error) {
	return os.Readlink(r.root + "/" + strconv.Itoa(fd))
}

func (r procResolver) OriginalAbsolutePath(fd int) (string, error) {
	target, err := r.link(fd)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(target, "/") || strings.HasSuffix(target, deletedSuffix) {
		return "", fmt.Errorf("fd %d has no absolute path (%s)", fd, target)
	}
	return target, nil
}

func (r procResolver) PseudoPath(fd int) (string, error) {
	if target, err := r.link(fd); err == nil {
		return target, nil
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return "", fmt.Errorf("describe fd %d: %w", fd, err)
	}
	return fmt.Sprintf("%s:[%d]", fileTypeName(st.Mode), st.Ino), nil
}

func fileTypeName(mode uint32) string {
	switch mode & unix.S_IFMT {
	case unix.S_IFSOCK:
		return "socket"
	case unix.S_IFIFO:
		return "pipe"
	case unix.S_IFCHR:
		return "chardev"
	case unix.S_IFBLK:
		return "blockdev"
	case unix.S_IFDIR:
		return "dir"
	case unix.S_IFLNK:
		return "symlink"
	default:
		return "file"
	}
}

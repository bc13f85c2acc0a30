package trace

import (
	"errors"
	"syscall"
)

// fakeHost is an in-memory file system: files maps paths to contents and
// open descriptors are numbered from 3.
type fakeHost struct {
	files  map[string]string
	open   map[int]string
	nextFD int
	calls  int
}

func newFakeHost(files map[string]string) *fakeHost {
	return &fakeHost{files: files, open: make(map[int]string), nextFD: 3}
}

func (h *fakeHost) Open(path string, dirfd int, flags int, mode uint32) (int, error) {
	h.calls++
	if _, ok := h.files[path]; !ok {
		return -1, syscall.ENOENT
	}
	fd := h.nextFD
	h.nextFD++
	h.open[fd] = path
	return fd, nil
}

func (h *fakeHost) Close(fd int) error {
	h.calls++
	if _, ok := h.open[fd]; !ok {
		return syscall.EBADF
	}
	delete(h.open, fd)
	return nil
}

func (h *fakeHost) Read(fd int, buf []byte) (int, error) {
	h.calls++
	path, ok := h.open[fd]
	if !ok {
		return -1, syscall.EBADF
	}
	return copy(buf, h.files[path]), nil
}

func (h *fakeHost) Readv(fd int, iovs [][]byte) (int, error) {
	h.calls++
	path, ok := h.open[fd]
	if !ok {
		return -1, syscall.EBADF
	}
	data := h.files[path]
	n := 0
	for _, iov := range iovs {
		c := copy(iov, data[n:])
		n += c
		if n == len(data) {
			break
		}
	}
	return n, nil
}

func (h *fakeHost) Pread(fd int, buf []byte, offset int64) (int, error) {
	h.calls++
	path, ok := h.open[fd]
	if !ok {
		return -1, syscall.EBADF
	}
	data := h.files[path]
	if offset >= int64(len(data)) {
		return 0, nil
	}
	return copy(buf, data[offset:]), nil
}

// fakeResolver answers from the host's descriptor table, with optional
// pseudo labels for descriptors that have no path.
type fakeResolver struct {
	host   *fakeHost
	pseudo map[int]string
}

func (r *fakeResolver) OriginalAbsolutePath(fd int) (string, error) {
	if path, ok := r.host.open[fd]; ok {
		return path, nil
	}
	return "", errors.New("no path")
}

func (r *fakeResolver) PseudoPath(fd int) (string, error) {
	if label, ok := r.pseudo[fd]; ok {
		return label, nil
	}
	return "", errors.New("no pseudo path")
}

// stepClock advances by one millisecond per reading.
type stepClock struct {
	now uint64
}

func (c *stepClock) UptimeMS() uint64 {
	c.now++
	return c.now
}

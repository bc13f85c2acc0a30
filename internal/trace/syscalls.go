package trace

import (
	"unsafe"

	"github.com/blackwell-systems/fsprof/internal/perf"
)

// Open runs the real open and records an Open event carrying the path
// argument.
func (p *Process) Open(th *Thread, params OpenParams) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.clock.UptimeMS()
	fd, err := p.host.Open(params.Path, params.Dirfd, params.Flags, params.Mode)

	buf := p.activeBuffer(th)
	if buf == nil {
		return fd, err
	}

	data := &perf.OpenData{
		Dirfd:   int32(params.Dirfd),
		Options: int32(params.Flags),
		Mode:    params.Mode,
	}
	data.PathIndex, data.HasPath = p.register(buf, perf.KindOpen, params.Path)

	p.append(buf, perf.Event{
		Kind:    perf.KindOpen,
		StartMS: start,
		Result:  resultOf(err),
		Open:    data,
	})
	return fd, err
}

// Close runs the real close and records a Close event. The descriptor is
// described before it is closed, since it cannot be resolved afterwards.
func (p *Process) Close(th *Thread, fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.clock.UptimeMS()

	var path string
	if p.activeBuffer(th) != nil {
		path = p.describe(fd)
	}

	err := p.host.Close(fd)

	buf := p.activeBuffer(th)
	if buf == nil {
		return err
	}
	if path == "" {
		// Suppression was lifted while the descriptor was being closed.
		path = perf.InvalidPath
	}

	p.append(buf, perf.Event{
		Kind:       perf.KindClose,
		StartMS:    start,
		Result:     resultOf(err),
		Descriptor: p.descriptorData(buf, perf.KindClose, fd, path),
	})
	return err
}

// Read runs the real read and records a Read event.
func (p *Process) Read(th *Thread, fd int, b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.clock.UptimeMS()
	n, err := p.host.Read(fd, b)

	buf := p.activeBuffer(th)
	if buf == nil {
		return n, err
	}

	p.append(buf, perf.Event{
		Kind:       perf.KindRead,
		StartMS:    start,
		Result:     resultOf(err),
		Descriptor: p.descriptorData(buf, perf.KindRead, fd, p.describe(fd)),
	})
	return n, err
}

// Readv runs the real readv and records a Readv event.
func (p *Process) Readv(th *Thread, fd int, iovs [][]byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.clock.UptimeMS()
	n, err := p.host.Readv(fd, iovs)

	buf := p.activeBuffer(th)
	if buf == nil {
		return n, err
	}

	p.append(buf, perf.Event{
		Kind:       perf.KindReadv,
		StartMS:    start,
		Result:     resultOf(err),
		Descriptor: p.descriptorData(buf, perf.KindReadv, fd, p.describe(fd)),
	})
	return n, err
}

// Pread runs the real pread and records a Pread event with the buffer
// address, requested size and offset.
func (p *Process) Pread(th *Thread, fd int, b []byte, offset int64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.clock.UptimeMS()
	n, err := p.host.Pread(fd, b, offset)

	buf := p.activeBuffer(th)
	if buf == nil {
		return n, err
	}

	data := &perf.PreadData{
		DescriptorData: *p.descriptorData(buf, perf.KindPread, fd, p.describe(fd)),
		BufferPtr:      bufferAddr(b),
		Size:           uint64(len(b)),
		Offset:         offset,
	}
	p.append(buf, perf.Event{
		Kind:    perf.KindPread,
		StartMS: start,
		Result:  resultOf(err),
		Pread:   data,
	})
	return n, err
}

func (p *Process) descriptorData(buf *perf.EventBuffer, kind perf.Kind, fd int, path string) *perf.DescriptorData {
	data := &perf.DescriptorData{FD: int32(fd)}
	data.PathIndex, data.HasPath = p.register(buf, kind, path)
	return data
}

func bufferAddr(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&b[0])))
}

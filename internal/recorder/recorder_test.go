package recorder

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/blackwell-systems/fsprof/internal/perf"
	"github.com/blackwell-systems/fsprof/internal/trace"
)

type openFile struct {
	path   string
	offset int
}

// memHost is an in-memory file system with per-descriptor offsets.
type memHost struct {
	files  map[string][]byte
	open   map[int]*openFile
	nextFD int
}

func newMemHost(files map[string]string) *memHost {
	h := &memHost{files: make(map[string][]byte), open: make(map[int]*openFile), nextFD: 3}
	for path, content := range files {
		h.files[path] = []byte(content)
	}
	return h
}

func (h *memHost) Open(path string, dirfd int, flags int, mode uint32) (int, error) {
	if _, ok := h.files[path]; !ok {
		return -1, syscall.ENOENT
	}
	fd := h.nextFD
	h.nextFD++
	h.open[fd] = &openFile{path: path}
	return fd, nil
}

func (h *memHost) Close(fd int) error {
	if _, ok := h.open[fd]; !ok {
		return syscall.EBADF
	}
	delete(h.open, fd)
	return nil
}

func (h *memHost) Read(fd int, buf []byte) (int, error) {
	f, ok := h.open[fd]
	if !ok {
		return -1, syscall.EBADF
	}
	n := copy(buf, h.files[f.path][f.offset:])
	f.offset += n
	return n, nil
}

func (h *memHost) Readv(fd int, iovs [][]byte) (int, error) {
	total := 0
	for _, iov := range iovs {
		n, err := h.Read(fd, iov)
		if err != nil {
			return -1, err
		}
		total += n
		if n < len(iov) {
			break
		}
	}
	return total, nil
}

func (h *memHost) Pread(fd int, buf []byte, offset int64) (int, error) {
	f, ok := h.open[fd]
	if !ok {
		return -1, syscall.EBADF
	}
	data := h.files[f.path]
	if int(offset) >= len(data) {
		return 0, nil
	}
	return copy(buf, data[offset:]), nil
}

func (h *memHost) OriginalAbsolutePath(fd int) (string, error) {
	f, ok := h.open[fd]
	if !ok {
		return "", syscall.EBADF
	}
	return f.path, nil
}

func (h *memHost) PseudoPath(fd int) (string, error) {
	return "", syscall.EBADF
}

func kinds(p *perf.Profile) []perf.Kind {
	out := make([]perf.Kind, len(p.Events))
	for i, e := range p.Events {
		out[i] = e.Kind
	}
	return out
}

func TestCat_CopiesFilesInOrder(t *testing.T) {
	host := newMemHost(map[string]string{
		"/etc/hosts":  "127.0.0.1 localhost\n",
		"/etc/passwd": "root:x:0:0::/root:/bin/sh\n",
	})
	proc := trace.NewProcess(host, host, trace.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, proc.EnableProfiling(perf.DefaultTableOptions(), 0))

	var out bytes.Buffer
	stats, err := Cat(context.Background(), proc, proc.NewThread(), &out, []string{"/etc/hosts", "/etc/passwd"})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1 localhost\nroot:x:0:0::/root:/bin/sh\n", out.String())
	assert.Equal(t, CatStats{Files: 2, Bytes: int64(out.Len())}, stats)

	prof, ok := proc.DisableProfiling()
	require.True(t, ok)

	one := []perf.Kind{perf.KindOpen, perf.KindPread, perf.KindReadv, perf.KindRead, perf.KindClose}
	assert.Equal(t, append(append([]perf.Kind{}, one...), one...), kinds(prof))

	for _, rec := range prof.Records()[:5] {
		assert.Equal(t, "/etc/hosts", rec.Path)
	}
	assert.Empty(t, host.open, "every descriptor is closed")
}

func TestCat_LargeFileUsesRead(t *testing.T) {
	content := strings.Repeat("x", 2*BlockSize+100)
	host := newMemHost(map[string]string{"/var/log/big": content})
	proc := trace.NewProcess(host, host)
	require.NoError(t, proc.EnableProfiling(perf.DefaultTableOptions(), 0))

	var out bytes.Buffer
	_, err := Cat(context.Background(), proc, proc.NewThread(), &out, []string{"/var/log/big"})
	require.NoError(t, err)
	assert.Equal(t, content, out.String())

	prof, _ := proc.DisableProfiling()
	// open, pread, readv (first block), read, read (rest), read (EOF), close
	assert.Equal(t, []perf.Kind{
		perf.KindOpen, perf.KindPread, perf.KindReadv,
		perf.KindRead, perf.KindRead, perf.KindRead,
		perf.KindClose,
	}, kinds(prof))

	pread := prof.Events[1].Pread
	require.NotNil(t, pread)
	assert.Equal(t, uint64(BlockSize), pread.Size)
	assert.Zero(t, pread.Offset)
}

func TestCat_ContinuesAfterFailure(t *testing.T) {
	host := newMemHost(map[string]string{"/ok": "fine"})
	proc := trace.NewProcess(host, host)
	require.NoError(t, proc.EnableProfiling(perf.DefaultTableOptions(), 0))

	var out bytes.Buffer
	stats, err := Cat(context.Background(), proc, proc.NewThread(), &out, []string{"/missing", "/ok"})

	require.Error(t, err)
	assert.ErrorIs(t, err, syscall.ENOENT)
	assert.Contains(t, err.Error(), "/missing")
	assert.Equal(t, "fine", out.String())
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Failed)

	prof, _ := proc.DisableProfiling()
	require.NotEmpty(t, prof.Events)
	first := prof.Events[0]
	assert.Equal(t, perf.KindOpen, first.Kind)
	assert.Equal(t, perf.Failed(int32(syscall.ENOENT)), first.Result)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }

func TestCat_WriterErrorStillCloses(t *testing.T) {
	host := newMemHost(map[string]string{"/a": "data"})
	proc := trace.NewProcess(host, host)

	_, err := Cat(context.Background(), proc, proc.NewThread(), failingWriter{}, []string{"/a"})
	assert.ErrorContains(t, err, "disk full")
	assert.Empty(t, host.open)
}

func TestCat_Cancelled(t *testing.T) {
	host := newMemHost(map[string]string{"/a": "data"})
	proc := trace.NewProcess(host, host)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	stats, err := Cat(ctx, proc, proc.NewThread(), &out, []string{"/a"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Files)
	assert.Zero(t, out.Len())
}

func TestRecord(t *testing.T) {
	host := newMemHost(map[string]string{"/etc/hostname": "box\n"})

	var out bytes.Buffer
	prof, stats, err := Record(context.Background(), Options{
		Host:     host,
		Resolver: host,
		Logger:   zaptest.NewLogger(t),
		Table:    perf.DefaultTableOptions(),
		PID:      77,
		Command:  "fsprof-cat",
	}, &out, []string{"/etc/hostname"})
	require.NoError(t, err)

	assert.Equal(t, "box\n", out.String())
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 77, prof.PID)
	assert.Equal(t, "fsprof-cat", prof.Command)
	assert.NotZero(t, prof.SessionID)
	assert.Len(t, prof.Events, 5)
	assert.Equal(t, []string{"/etc/hostname"}, prof.Strings)
}

func TestRecord_ReturnsProfileOnFailure(t *testing.T) {
	host := newMemHost(nil)
	prof, stats, err := Record(context.Background(), Options{Host: host, Resolver: host, Table: perf.DefaultTableOptions()},
		&bytes.Buffer{}, []string{"/nope"})

	assert.Error(t, err)
	require.NotNil(t, prof)
	assert.Equal(t, 1, stats.Failed)
	assert.Len(t, prof.Events, 1)
}

func TestWriteSpool(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "spool")
	host := newMemHost(map[string]string{"/a": "data"})
	prof, _, err := Record(context.Background(), Options{Host: host, Resolver: host, Table: perf.DefaultTableOptions()},
		&bytes.Buffer{}, []string{"/a"})
	require.NoError(t, err)

	path, err := WriteSpool(dir, prof)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, SpoolName(prof), filepath.Base(path))
	assert.True(t, strings.HasSuffix(path, perf.ProfileExt))

	loaded, err := perf.LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, prof.SessionID, loaded.SessionID)
	assert.Equal(t, prof.Events, loaded.Events)

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSpoolName_SortsByStart(t *testing.T) {
	early := &perf.Profile{Started: time.Unix(1, 0)}
	late := &perf.Profile{Started: time.Unix(1_000_000_000, 0)}
	assert.Less(t, SpoolName(early), SpoolName(late))
}

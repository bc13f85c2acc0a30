package perf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProfile() *Profile {
	return &Profile{
		SessionID: uuid.New(),
		PID:       4242,
		Command:   "fsprof-cat",
		Started:   time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		Strings:   []string{"/etc/hosts", "pipe:[77]"},
		Events: []Event{
			{Kind: KindOpen, StartMS: 10, Open: &OpenData{PathIndex: 0, HasPath: true, Dirfd: -100}},
			{Kind: KindRead, StartMS: 11, Descriptor: &DescriptorData{FD: 3, PathIndex: 0, HasPath: true}},
			{Kind: KindPread, StartMS: 12, Pread: &PreadData{
				DescriptorData: DescriptorData{FD: 3, PathIndex: 0, HasPath: true},
				Size:           512,
				Offset:         128,
			}},
			{Kind: KindRead, StartMS: 13, Result: Failed(9), Descriptor: &DescriptorData{FD: 99}},
			{Kind: KindClose, StartMS: 14, Descriptor: &DescriptorData{FD: 5, PathIndex: 1, HasPath: true}},
		},
	}
}

func TestWriteReadProfile(t *testing.T) {
	p := sampleProfile()

	var buf bytes.Buffer
	require.NoError(t, WriteProfile(&buf, p))

	got, err := ReadProfile(&buf)
	require.NoError(t, err)

	assert.Equal(t, p.SessionID, got.SessionID)
	assert.Equal(t, p.Strings, got.Strings)
	require.Len(t, got.Events, len(p.Events))
	assert.Equal(t, KindPread, got.Events[2].Kind)
	assert.Equal(t, int64(128), got.Events[2].Pread.Offset)
	assert.Equal(t, Failed(9), got.Events[3].Result)
}

func TestReadProfile_RejectsDanglingIndex(t *testing.T) {
	p := sampleProfile()
	p.Events = append(p.Events, Event{Kind: KindRead, Descriptor: &DescriptorData{FD: 3, PathIndex: 7, HasPath: true}})

	var buf bytes.Buffer
	require.NoError(t, WriteProfile(&buf, p))

	_, err := ReadProfile(&buf)
	assert.ErrorIs(t, err, ErrBadProfile)
}

func TestReadProfile_Garbage(t *testing.T) {
	_, err := ReadProfile(bytes.NewReader([]byte("not a profile")))
	assert.Error(t, err)
}

func TestProfile_RecordsSkipsPathless(t *testing.T) {
	records := sampleProfile().Records()

	require.Len(t, records, 4)
	assert.Equal(t, "/etc/hosts", records[0].Path)
	assert.Equal(t, "pipe:[77]", records[3].Path)
	assert.Equal(t, KindClose, records[3].Event.Kind)
}

func TestSaveLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session"+ProfileExt)

	require.NoError(t, SaveProfile(path, sampleProfile()))

	got, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, 4242, got.PID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

package filetree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/fsprof/internal/perf"
)

func TestAggregator_CountsRepeatVisits(t *testing.T) {
	agg := NewAggregator(nil)

	first := agg.Add("/usr/bin/ls")
	second := agg.Add("/usr/bin/ls")
	third := agg.Add("/usr/bin/ls")

	tree := agg.Tree()
	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
	assert.Equal(t, uint64(3), tree.Count(first))
	assert.Equal(t, uint64(3), agg.Records())

	// intermediate nodes keep the count they were created with
	usr, _ := tree.Find("/usr")
	assert.Equal(t, uint64(1), tree.Count(usr))
}

func TestAggregator_VisitingAnAncestor(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Add("/usr/lib/libc.so")
	lib := agg.Add("/usr/lib")

	assert.Equal(t, uint64(2), agg.Tree().Count(lib))
}

func TestAggregator_EmptyPathCountsRoot(t *testing.T) {
	agg := NewAggregator(nil)
	root := agg.Add("")
	agg.Add("")

	assert.Equal(t, agg.Tree().Root(), root)
	assert.Equal(t, uint64(2), agg.Tree().Count(root))
}

func TestAggregator_ExtendsExistingTree(t *testing.T) {
	tree := New()
	tree.LocateOrCreate("/tmp")

	agg := NewAggregator(tree)
	id := agg.Add("/tmp")
	assert.Same(t, tree, agg.Tree())
	assert.Equal(t, uint64(2), tree.Count(id))
}

func testProfile(t *testing.T, paths ...string) *perf.Profile {
	t.Helper()
	buf := perf.NewEventBuffer(0, perf.DefaultTableOptions())
	for i, p := range paths {
		idx, err := buf.RegisterString(p)
		require.NoError(t, err)
		ok := buf.Append(perf.Event{
			Kind:    perf.KindOpen,
			StartMS: uint64(i),
			Result:  perf.Success(),
			Open:    &perf.OpenData{PathIndex: idx, HasPath: true, Dirfd: -100},
		})
		require.True(t, ok)
	}
	// an event whose path could not be registered
	buf.Append(perf.Event{
		Kind:       perf.KindClose,
		Result:     perf.Success(),
		Descriptor: &perf.DescriptorData{FD: 3},
	})
	return &perf.Profile{Strings: buf.Strings().Strings(), Events: buf.Drain()}
}

func TestAggregator_AddProfile(t *testing.T) {
	prof := testProfile(t, "/etc/hosts", "/etc/hosts", "socket:[7]", "/etc/passwd")

	agg := NewAggregator(nil)
	agg.AddProfile(prof)

	tree := agg.Tree()
	assert.Equal(t, uint64(4), agg.Records(), "pathless events are skipped")

	hosts, ok := tree.Find("/etc/hosts")
	require.True(t, ok)
	assert.Equal(t, uint64(2), tree.Count(hosts))

	sock, ok := tree.Find("socket:[7]")
	require.True(t, ok)
	assert.True(t, tree.Pseudo(sock))
}

func TestBuild_MergesProfiles(t *testing.T) {
	tree := Build(
		testProfile(t, "/var/log/syslog"),
		testProfile(t, "/var/log/syslog", "/var/log/auth.log"),
	)

	syslog, ok := tree.Find("/var/log/syslog")
	require.True(t, ok)
	assert.Equal(t, uint64(2), tree.Count(syslog))

	log, _ := tree.Find("/var/log")
	assert.Equal(t, 2, tree.ChildCount(log))
}

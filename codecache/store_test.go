package codecache

import (
	"context"
	"testing"

	"github.com/beehive-lab/Maxine-VM-sub091/compilation"
	"github.com/beehive-lab/Maxine-VM-sub091/jit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRecordsBrokerInstalls(t *testing.T) {
	store, err := Open("")
	require.NoError(t, err)
	defer store.Close()

	b, err := compilation.NewBroker(compilation.DefaultConfig(), &jit.Baseline{}, &jit.Optimizing{},
		compilation.WithInstallObserver(store))
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	m := compilation.NewMethod("Foo.bar()", false)
	baseline, err := b.Compile(ctx, m, compilation.Default)
	require.NoError(t, err)
	_, err = b.Reoptimize(ctx, m, compilation.Default, true)
	require.NoError(t, err)
	_, err = b.Compile(ctx, m, compilation.TraceJIT)
	require.NoError(t, err)
	_, err = b.Compile(ctx, compilation.NewMethod("Foo.bar()/other", false), compilation.Default)
	require.NoError(t, err)

	history, err := store.History("Foo.bar()")
	require.NoError(t, err)
	require.Len(t, history, 3)
	var got [][3]string
	for _, rec := range history {
		got = append(got, [3]string{rec.Directive, rec.Compiler, rec.Tier})
		assert.Equal(t, rec.Size, len(rec.Code))
		assert.Equal(t, Hash(rec.Code), rec.Hash)
	}
	assert.Equal(t, [][3]string{
		{"default", "t1x", "baseline"},
		{"default", "c1x", "optimized"},
		{"tracejit", "t1x", "baseline"},
	}, got)
	assert.Equal(t, []int{1, 2, 1}, []int{history[0].Serial, history[1].Serial, history[2].Serial})

	rec, ok, err := store.Get("Foo.bar()", "default", 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, baseline.Code, rec.Code)

	_, ok, err = store.Get("Foo.bar()", "jit", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := store.All()
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStorePersists(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	rec := Record{Method: "A.b()", Directive: "default", Serial: 12, Compiler: "c1x", Tier: "optimized", Code: []byte{0xC3}}
	rec.Size, rec.Hash = len(rec.Code), Hash(rec.Code)
	require.NoError(t, store.Put(rec))
	require.NoError(t, store.Close())

	store, err = Open(dir)
	require.NoError(t, err)
	defer store.Close()
	got, ok, err := store.Get("A.b()", "default", 12)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestKeyOrdering(t *testing.T) {
	assert.Equal(t, "tm/A.b()/default/00000002", string(Key("A.b()", "default", 2)))
	assert.Less(t, string(Key("A", "default", 9)), string(Key("A", "default", 10)))
	assert.Len(t, Hash(nil), 64)
}

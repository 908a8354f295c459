package ruz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/ruz-auth/internal/domain"
	"github.com/Proton-105/ruz-auth/internal/registry"
)

type fakeFetcher struct {
	lists map[string][]registry.Classifier
	fail  map[string]error
	calls []string
}

func (f *fakeFetcher) FetchClassifiers(_ context.Context, endpoint string) ([]registry.Classifier, error) {
	f.calls = append(f.calls, endpoint)
	if err := f.fail[endpoint]; err != nil {
		return nil, err
	}
	return f.lists[endpoint], nil
}

type memoryWriter struct {
	rows map[string]domain.DictionaryEntry
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{rows: make(map[string]domain.DictionaryEntry)}
}

func (w *memoryWriter) Upsert(_ context.Context, e domain.DictionaryEntry) (bool, error) {
	key := e.Type + "/" + e.Code
	cur, ok := w.rows[key]
	if ok && cur.NameSk == e.NameSk && equalPtr(cur.NameEn, e.NameEn) {
		return false, nil
	}
	w.rows[key] = e
	return true, nil
}

func (w *memoryWriter) InsertIfAbsent(_ context.Context, e domain.DictionaryEntry) (bool, error) {
	key := e.Type + "/" + e.Code
	if _, ok := w.rows[key]; ok {
		return false, nil
	}
	w.rows[key] = e
	return true, nil
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func TestImporterContinuesAfterFailedSource(t *testing.T) {
	fetcher := &fakeFetcher{
		lists: map[string][]registry.Classifier{
			"kraje":        {{Code: "1", NameSk: "Bratislavský kraj"}, {Code: "2", NameSk: "Trnavský kraj"}},
			"pravne-formy": {{Code: "112", NameSk: "s.r.o.", NameEn: strPtr("Ltd.")}},
		},
		fail: map[string]error{"okresy": errors.New("timeout")},
	}
	writer := newMemoryWriter()
	sources := []Source{
		{Type: domain.DictKraj, Endpoint: "kraje"},
		{Type: domain.DictOkres, Endpoint: "okresy"},
		{Type: domain.DictPravnaForma, Endpoint: "pravne-formy"},
	}

	imp := NewImporter(fetcher, writer, sources, testLogger())
	report, err := imp.Import(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"kraje", "okresy", "pravne-formy"}, fetcher.calls)
	assert.Equal(t, 3, report.Imported())
	require.Len(t, report.Failed(), 1)
	assert.Equal(t, domain.DictOkres, report.Failed()[0].Type)
	assert.Equal(t, len(DataSources), report.Seeded)

	again, err := imp.Import(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Imported())
	assert.Zero(t, again.Seeded)
}

func TestImporterCountsChangedNames(t *testing.T) {
	writer := newMemoryWriter()
	fetcher := &fakeFetcher{lists: map[string][]registry.Classifier{
		"kraje": {{Code: "1", NameSk: "Bratislavský kraj"}},
	}}
	sources := []Source{{Type: domain.DictKraj, Endpoint: "kraje"}}

	imp := NewImporter(fetcher, writer, sources, testLogger())
	_, err := imp.Import(context.Background())
	require.NoError(t, err)

	fetcher.lists["kraje"] = []registry.Classifier{{Code: "1", NameSk: "Bratislavský kraj", NameEn: strPtr("Bratislava Region")}}
	report, err := imp.Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported())
}

func TestImporterStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{}
	_, err := NewImporter(fetcher, newMemoryWriter(), nil, testLogger()).Import(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fetcher.calls)
}

func TestSeedSourcesSkipsExisting(t *testing.T) {
	writer := newMemoryWriter()
	writer.rows[domain.DictZdrojDat+"/SUSR"] = domain.DictionaryEntry{Type: domain.DictZdrojDat, Code: "SUSR", NameSk: "custom"}

	n, err := NewImporter(&fakeFetcher{}, writer, nil, testLogger()).SeedSources(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(DataSources)-1, n)
	assert.Equal(t, "custom", writer.rows[domain.DictZdrojDat+"/SUSR"].NameSk)
}

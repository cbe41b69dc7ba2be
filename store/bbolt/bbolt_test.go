package bbolt

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/certflux/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewRepositoryFromFile(filepath.Join(t.TempDir(), "inventory.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(serial string, createdAt time.Time) *store.Record {
	return &store.Record{
		ID:           "id-" + serial,
		SerialNumber: serial,
		CommonName:   serial + ".internal",
		SANs:         []string{"DNS:" + serial + ".internal"},
		NotBefore:    createdAt,
		NotAfter:     createdAt.AddDate(0, 0, 30),
		CreatedAt:    createdAt,
	}
}

func TestStore_PutGet(t *testing.T) {
	s := openTestStore(t)

	rec := testRecord("aa01", time.Now().UTC())
	require.NoError(t, s.Put(rec))

	got, err := s.Get("aa01")
	require.NoError(t, err)
	assert.Equal(t, rec.CommonName, got.CommonName)
	assert.Equal(t, rec.SANs, got.SANs)
}

func TestStore_PutOverwrites(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put(testRecord("aa01", time.Now().UTC())))
	updated := testRecord("aa01", time.Now().UTC())
	updated.CommonName = "renamed.internal"
	require.NoError(t, s.Put(updated))

	got, err := s.Get("aa01")
	require.NoError(t, err)
	assert.Equal(t, "renamed.internal", got.CommonName)
}

func TestStore_GetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get("nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_List_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UTC()
	require.NoError(t, s.Put(testRecord("old", base.Add(-time.Hour))))
	require.NoError(t, s.Put(testRecord("new", base)))

	recs, err := s.List()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "new", recs[0].SerialNumber)
}

func TestStore_List_EmptyDatabase(t *testing.T) {
	s := openTestStore(t)
	recs, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlyassOtmani/car-price-ml/internal/features"
	"github.com/IlyassOtmani/car-price-ml/internal/predict"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "audit.db")
	s, err := Open(path, "abc123")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func result(id string, hp float64, value float64) predict.Result {
	return predict.Result{
		ID:      id,
		Value:   value,
		Price:   fmt.Sprintf("$%.2f", value),
		Request: features.Request{Horsepower: hp, CarBrand: "toyota", CarBody: "sedan"},
	}
}

func TestRecordAndRecent(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	require.NoError(t, s.Record(ctx, result("a", 100, 100)))
	s.now = func() time.Time { return base.Add(time.Minute) }
	require.NoError(t, s.Record(ctx, result("b", 150, 200)))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "b", entries[0].ID)
	assert.Equal(t, "abc123", entries[0].Fingerprint)
	assert.Equal(t, 150.0, entries[0].Request.Horsepower)
	assert.Equal(t, "toyota", entries[0].Request.CarBrand)
	assert.Equal(t, 200.0, entries[0].Value)
	assert.Equal(t, "$200.00", entries[0].Price)
	assert.True(t, entries[0].CreatedAt.Equal(base.Add(time.Minute)))
	assert.Equal(t, "a", entries[1].ID)
}

func TestRecentLimit(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, result(fmt.Sprintf("r%d", i), 100, float64(i))))
	}

	entries, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "r4", entries[0].ID)
	assert.Equal(t, "r3", entries[1].ID)

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestRecentEmpty(t *testing.T) {
	s, _ := openTestStore(t)
	entries, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestDuplicateIDRejected(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, result("dup", 100, 1)))
	assert.Error(t, s.Record(ctx, result("dup", 100, 2)))
}

func TestReopenKeepsEntries(t *testing.T) {
	s, path := openTestStore(t)
	require.NoError(t, s.Record(context.Background(), result("kept", 90, 9)))
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	var count int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM predictions").Scan(&count))
	assert.Equal(t, 1, count)

	again, err := Open(path, "other")
	require.NoError(t, err)
	defer again.Close()
	entries, err := again.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc123", entries[0].Fingerprint)
}

func TestStoreSatisfiesRecorder(t *testing.T) {
	var _ predict.Recorder = (*Store)(nil)
}

package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleScan(root string) Scan {
	return Scan{
		ID:        uuid.New(),
		Root:      root,
		Threshold: 0.9,
		ScannedAt: time.Now().UTC().Truncate(time.Second),
		Groups: []GroupRecord{
			{
				Ordinal: 0,
				Images: []ImageRecord{
					{Path: "a.jpg", Signature: []float32{1, 2, 3, 4}},
					{Path: "b.jpg"},
				},
			},
		},
	}
}

func TestFileStoreRecordScan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	store := NewFileStore(path)
	defer store.Close()

	scan := sampleScan("/photos")
	require.NoError(t, store.RecordScan(context.Background(), scan))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var scans []Scan
	require.NoError(t, json.Unmarshal(data, &scans))
	require.Len(t, scans, 1)
	assert.Equal(t, scan.ID, scans[0].ID)
	assert.Equal(t, "/photos", scans[0].Root)
	require.Len(t, scans[0].Groups, 1)
	assert.Equal(t, []float32{1, 2, 3, 4}, scans[0].Groups[0].Images[0].Signature)
	assert.Empty(t, scans[0].Groups[0].Images[1].Signature)
}

func TestFileStoreAppendsToExistingHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	store := NewFileStore(path)

	first := sampleScan("/photos")
	second := sampleScan("/backup")
	require.NoError(t, store.RecordScan(context.Background(), first))
	require.NoError(t, store.RecordScan(context.Background(), second))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var scans []Scan
	require.NoError(t, json.Unmarshal(data, &scans))
	require.Len(t, scans, 2)
	assert.Equal(t, first.ID, scans[0].ID)
	assert.Equal(t, second.ID, scans[1].ID)
}

func TestFileStoreCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "history.json")
	store := NewFileStore(path)

	require.NoError(t, store.RecordScan(context.Background(), sampleScan("/photos")))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestFileStoreRejectsCorruptHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	store := NewFileStore(path)
	err := store.RecordScan(context.Background(), sampleScan("/photos"))
	assert.Error(t, err)
}

package rag

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	bolt "go.etcd.io/bbolt"
)

func sampleDocs() []Document {
	return []Document{
		{
			ID:     "Lokalbokning_chunk_0_1700000000",
			Source: "Lokalbokning",
			Text:   "Tjänst: Lokalbokning\n\nBeskrivning: Bokning av möteslokaler.",
			Meta:   map[string]string{"category": "Fastighet och Lokaler", "service_name": "Lokalbokning"},
			Total:  1,
		},
		{
			ID:      "Parkeringstillstånd_chunk_0_1700000000",
			Source:  "Parkeringstillstånd",
			Text:    "Tjänst: Parkeringstillstånd\n\nBeskrivning: Tillstånd för boendeparkering.",
			Meta:    map[string]string{"category": "Transport"},
			Ordinal: 0,
			Total:   1,
		},
	}
}

func sampleVectors() [][]float32 {
	return [][]float32{
		{1, 0, 0.5},
		{0, 1, 0.25},
	}
}

func writeSnapshot(t *testing.T, dir string) {
	t.Helper()
	snap, err := OpenSnapshot(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer snap.Close()
	if err := snap.SaveDocuments(sampleDocs(), 3); err != nil {
		t.Fatalf("save documents: %v", err)
	}
	if err := snap.SaveVectors(sampleVectors()); err != nil {
		t.Fatalf("save vectors: %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir)

	snap, err := OpenSnapshot(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer snap.Close()

	docs, vectors, err := snap.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(docs, sampleDocs()) {
		t.Errorf("documents did not round-trip:\n got %+v\nwant %+v", docs, sampleDocs())
	}
	if !reflect.DeepEqual(vectors, sampleVectors()) {
		t.Errorf("vectors did not round-trip: got %v", vectors)
	}

	info := snap.Info()
	if info == nil {
		t.Fatal("expected manifest after save")
	}
	if info.Docs != 2 || info.Dims != 3 {
		t.Errorf("manifest = %+v, want 2 docs with 3 dims", info)
	}
}

func TestSnapshotWithoutVectorFile(t *testing.T) {
	dir := t.TempDir()
	snap, err := OpenSnapshot(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer snap.Close()

	if err := snap.SaveDocuments(sampleDocs(), 0); err != nil {
		t.Fatalf("save documents: %v", err)
	}

	docs, vectors, err := snap.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if vectors != nil {
		t.Errorf("expected nil vectors for a document-only snapshot, got %v", vectors)
	}
}

func TestSnapshotDirtyFlagSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	snap, err := OpenSnapshot(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := snap.SetDirty(true); err != nil {
		t.Fatalf("set dirty: %v", err)
	}
	snap.Close()

	snap, err = OpenSnapshot(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer snap.Close()
	if !snap.IsDirty() {
		t.Error("dirty flag lost across reopen")
	}
	if err := snap.SetDirty(false); err != nil {
		t.Fatalf("clear dirty: %v", err)
	}
	if snap.IsDirty() {
		t.Error("dirty flag not cleared")
	}
}

func TestSnapshotDetectsChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir)

	path := filepath.Join(dir, "vectors.bin")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read vectors.bin: %v", err)
	}
	// Flip one payload byte; the trailer checksum no longer matches.
	data[vecHeaderSize] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("rewrite vectors.bin: %v", err)
	}

	snap, err := OpenSnapshot(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer snap.Close()
	if _, _, err := snap.Load(); !errors.Is(err, ErrSnapshotCorrupt) {
		t.Errorf("load error = %v, want ErrSnapshotCorrupt", err)
	}
}

func TestSnapshotDetectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir)

	path := filepath.Join(dir, "vectors.bin")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read vectors.bin: %v", err)
	}
	copy(data, "XXXX")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("rewrite vectors.bin: %v", err)
	}

	snap, err := OpenSnapshot(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer snap.Close()
	if _, err := snap.LoadVectors(); !errors.Is(err, ErrSnapshotCorrupt) {
		t.Errorf("load error = %v, want ErrSnapshotCorrupt", err)
	}
}

func TestSnapshotDetectsTruncation(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir)

	if err := os.Truncate(filepath.Join(dir, "vectors.bin"), 10); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	snap, err := OpenSnapshot(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer snap.Close()
	if _, err := snap.LoadVectors(); !errors.Is(err, ErrSnapshotCorrupt) {
		t.Errorf("load error = %v, want ErrSnapshotCorrupt", err)
	}
}

func TestSnapshotRejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir)

	path := filepath.Join(dir, "vectors.bin")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read vectors.bin: %v", err)
	}
	binary.LittleEndian.PutUint16(data[4:6], 99)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("rewrite vectors.bin: %v", err)
	}

	snap, err := OpenSnapshot(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer snap.Close()
	_, err = snap.LoadVectors()
	if err == nil {
		t.Fatal("expected an error for an unknown format version")
	}
	// A future format is unreadable, not corrupt.
	if errors.Is(err, ErrSnapshotCorrupt) {
		t.Errorf("version error should not be ErrSnapshotCorrupt: %v", err)
	}
}

func TestSnapshotDetectsVectorCountDivergence(t *testing.T) {
	dir := t.TempDir()
	snap, err := OpenSnapshot(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer snap.Close()

	if err := snap.SaveDocuments(sampleDocs()[:1], 3); err != nil {
		t.Fatalf("save documents: %v", err)
	}
	if err := snap.SaveVectors(sampleVectors()); err != nil {
		t.Fatalf("save vectors: %v", err)
	}

	if _, _, err := snap.Load(); !errors.Is(err, ErrSnapshotCorrupt) {
		t.Errorf("load error = %v, want ErrSnapshotCorrupt", err)
	}
}

func TestSnapshotDetectsManifestDivergence(t *testing.T) {
	dir := t.TempDir()
	snap, err := OpenSnapshot(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer snap.Close()

	if err := snap.SaveDocuments(sampleDocs(), 0); err != nil {
		t.Fatalf("save documents: %v", err)
	}

	// Drop one document behind the manifest's back.
	err = snap.db.Update(func(tx *bolt.Tx) error {
		key := make([]byte, 4)
		binary.BigEndian.PutUint32(key, 1)
		return tx.Bucket(bucketDocs).Delete(key)
	})
	if err != nil {
		t.Fatalf("tamper: %v", err)
	}

	if _, _, err := snap.Load(); !errors.Is(err, ErrSnapshotCorrupt) {
		t.Errorf("load error = %v, want ErrSnapshotCorrupt", err)
	}
}

func TestSnapshotReset(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir)

	snap, err := OpenSnapshot(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer snap.Close()

	if err := snap.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	docs, vectors, err := snap.Load()
	if err != nil {
		t.Fatalf("load after reset: %v", err)
	}
	if len(docs) != 0 || vectors != nil {
		t.Errorf("reset left %d documents and %d vectors behind", len(docs), len(vectors))
	}
	if snap.Info() != nil {
		t.Error("reset left the manifest behind")
	}
	if _, err := os.Stat(filepath.Join(dir, "vectors.bin")); !os.IsNotExist(err) {
		t.Errorf("reset left vectors.bin behind: %v", err)
	}
}

func TestSnapshotSaveVectorsRejectsMixedDims(t *testing.T) {
	dir := t.TempDir()
	snap, err := OpenSnapshot(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer snap.Close()

	err = snap.SaveVectors([][]float32{{1, 2, 3}, {1, 2}})
	if err == nil {
		t.Fatal("expected an error for mixed vector widths")
	}
}

package rag

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketMeta = []byte("meta")
	bucketDocs = []byte("docs")
	keyInfo    = []byte("info")
	keyDirty   = []byte("dirty")
)

// snapshotInfo is the manifest stored next to the documents. Docs is
// cross-checked against the vector file on load.
type snapshotInfo struct {
	Docs      int       `json:"docs"`
	Dims      int       `json:"dims"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot persists the in-memory store as a bbolt database (documents
// plus manifest) and a flat binary vector file. bbolt runs with NoSync;
// explicit Sync at commit boundaries provides durability.
type Snapshot struct {
	dir string
	db  *bolt.DB
}

// OpenSnapshot opens or creates the snapshot files in dir.
func OpenSnapshot(dir string) (*Snapshot, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(filepath.Join(dir, "index.db"), 0o644, &bolt.Options{
		NoSync: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	return &Snapshot{dir: dir, db: db}, nil
}

func (s *Snapshot) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SetDirty marks the snapshot as behind the in-memory state. The flag
// is synced immediately so a crash between mutation and flush forces a
// rebuild on the next start.
func (s *Snapshot) SetDirty(dirty bool) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		if dirty {
			return b.Put(keyDirty, []byte{1})
		}
		return b.Delete(keyDirty)
	})
	if err != nil {
		return err
	}
	return s.db.Sync()
}

// IsDirty reports whether the snapshot was not cleanly flushed.
func (s *Snapshot) IsDirty() bool {
	var dirty bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}
		dirty = b.Get(keyDirty) != nil
		return nil
	})
	return dirty
}

// SaveDocuments rewrites the document bucket and manifest in one
// transaction, then syncs.
func (s *Snapshot) SaveDocuments(docs []Document, dims int) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		mb, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		info, err := json.Marshal(snapshotInfo{Docs: len(docs), Dims: dims, UpdatedAt: time.Now().UTC()})
		if err != nil {
			return err
		}
		if err := mb.Put(keyInfo, info); err != nil {
			return err
		}

		// Recreate the bucket so deleted documents do not linger.
		if err := tx.DeleteBucket(bucketDocs); err != nil && err != bolt.ErrBucketNotFound {
			return fmt.Errorf("delete docs bucket: %w", err)
		}
		db, err := tx.CreateBucket(bucketDocs)
		if err != nil {
			return err
		}
		key := make([]byte, 4)
		for i, doc := range docs {
			data, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("marshal document %d: %w", i, err)
			}
			binary.BigEndian.PutUint32(key, uint32(i))
			if err := db.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.db.Sync()
}

// LoadDocuments reads all documents in insertion order. A missing
// bucket means an empty snapshot.
func (s *Snapshot) LoadDocuments() ([]Document, error) {
	var docs []Document
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDocs)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var doc Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
	})
	return docs, err
}

// Info returns the stored manifest, or nil when the snapshot is empty.
func (s *Snapshot) Info() *snapshotInfo {
	var info *snapshotInfo
	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}
		data := b.Get(keyInfo)
		if data == nil {
			return nil
		}
		var si snapshotInfo
		if err := json.Unmarshal(data, &si); err != nil {
			return err
		}
		info = &si
		return nil
	})
	return info
}

// vectors.bin format v1:
//
//	[4B magic "IHVF"][2B version LE][2B reserved]
//	[4B count LE][4B dims LE]
//	[count * dims * 4B float32 LE]
//	[4B CRC32-C of everything above]
var (
	vecMagic   = [4]byte{'I', 'H', 'V', 'F'}
	vecVersion = uint16(1)
	castagnoli = crc32.MakeTable(crc32.Castagnoli)
)

const (
	vecHeaderSize  = 16 // magic(4) + version(2) + reserved(2) + count(4) + dims(4)
	vecTrailerSize = 4  // CRC32-C
)

// SaveVectors writes the embedding matrix with a checksummed header. An
// empty matrix removes the file.
func (s *Snapshot) SaveVectors(vectors [][]float32) error {
	if len(vectors) == 0 {
		err := os.Remove(s.vectorsPath())
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	dims := len(vectors[0])
	buf := make([]byte, vecHeaderSize+len(vectors)*dims*4+vecTrailerSize)

	copy(buf[0:4], vecMagic[:])
	binary.LittleEndian.PutUint16(buf[4:6], vecVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(vectors)))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(dims))

	off := vecHeaderSize
	for i, vec := range vectors {
		if len(vec) != dims {
			return fmt.Errorf("vector %d has %d dims, want %d", i, len(vec), dims)
		}
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
			off += 4
		}
	}

	binary.LittleEndian.PutUint32(buf[off:off+4], crc32.Checksum(buf[:off], castagnoli))
	return os.WriteFile(s.vectorsPath(), buf, 0o644)
}

// LoadVectors reads and verifies the vector file. A missing file is
// not an error; it means no embeddings were stored.
func (s *Snapshot) LoadVectors() ([][]float32, error) {
	data, err := os.ReadFile(s.vectorsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) < vecHeaderSize+vecTrailerSize {
		return nil, fmt.Errorf("%w: vectors.bin too short (%d bytes)", ErrSnapshotCorrupt, len(data))
	}
	if [4]byte(data[0:4]) != vecMagic {
		return nil, fmt.Errorf("%w: bad magic %x", ErrSnapshotCorrupt, data[0:4])
	}
	if ver := binary.LittleEndian.Uint16(data[4:6]); ver != vecVersion {
		return nil, fmt.Errorf("unsupported vectors.bin version %d", ver)
	}

	n := int(binary.LittleEndian.Uint32(data[8:12]))
	dims := int(binary.LittleEndian.Uint32(data[12:16]))
	payloadEnd := vecHeaderSize + n*dims*4
	if len(data) < payloadEnd+vecTrailerSize {
		return nil, fmt.Errorf("%w: truncated, want %d bytes got %d", ErrSnapshotCorrupt, payloadEnd+vecTrailerSize, len(data))
	}
	stored := binary.LittleEndian.Uint32(data[payloadEnd : payloadEnd+4])
	if computed := crc32.Checksum(data[:payloadEnd], castagnoli); stored != computed {
		return nil, fmt.Errorf("%w: checksum mismatch, stored %08x computed %08x", ErrSnapshotCorrupt, stored, computed)
	}

	vectors := make([][]float32, n)
	off := vecHeaderSize
	for i := range vectors {
		vec := make([]float32, dims)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Load restores documents and vectors together. Divergent lengths mean
// the snapshot is structurally unusable and must be rebuilt.
func (s *Snapshot) Load() ([]Document, [][]float32, error) {
	docs, err := s.LoadDocuments()
	if err != nil {
		return nil, nil, err
	}
	vectors, err := s.LoadVectors()
	if err != nil {
		return nil, nil, err
	}
	if len(vectors) > 0 && len(vectors) != len(docs) {
		return nil, nil, fmt.Errorf("%w: %d documents but %d vectors", ErrSnapshotCorrupt, len(docs), len(vectors))
	}
	if info := s.Info(); info != nil && info.Docs != len(docs) {
		return nil, nil, fmt.Errorf("%w: manifest says %d documents, found %d", ErrSnapshotCorrupt, info.Docs, len(docs))
	}
	return docs, vectors, nil
}

// Reset drops all persisted state, used before a rebuild after
// corruption.
func (s *Snapshot) Reset() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketDocs} {
			if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.db.Sync(); err != nil {
		return err
	}
	if err := os.Remove(s.vectorsPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Snapshot) vectorsPath() string {
	return filepath.Join(s.dir, "vectors.bin")
}

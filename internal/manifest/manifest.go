package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/spfresh/blobstore"
)

const (
	ManifestFileName = "MANIFEST"
	CurrentFileName  = "CURRENT"
	// CurrentVersion is the version of the manifest format.
	CurrentVersion = 1
)

// Manifest describes one persisted index snapshot.
type Manifest struct {
	Version int
	// ID is the snapshot version; blobs live under Dir(ID).
	ID uint64
	// SnapshotID uniquely names the snapshot across stores.
	SnapshotID string
	CreatedAt  time.Time

	Dim         int
	Metric      string
	Variant     string
	Compression string
	// NextID is the next vector id to assign.
	NextID uint64
	// NextHead is the next head id to assign.
	NextHead uint32
	// Params is the encoded parameter store.
	Params []byte

	Heads    BlobInfo
	Postings []PostingInfo
}

// BlobInfo locates and checksums one blob.
type BlobInfo struct {
	Path string
	Size int64
	// CRC is the CRC32-IEEE of the whole blob.
	CRC uint32
}

// PostingInfo describes the blob of one posting list.
type PostingInfo struct {
	Head  uint32
	Count uint64
	BlobInfo
}

// New creates a manifest for snapshot id with a fresh snapshot id.
func New(id uint64, dim int, metric string) *Manifest {
	return &Manifest{
		Version:    CurrentVersion,
		ID:         id,
		SnapshotID: uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		Dim:        dim,
		Metric:     metric,
	}
}

// Count returns the number of vectors across all posting lists.
func (m *Manifest) Count() uint64 {
	var n uint64
	for _, p := range m.Postings {
		n += p.Count
	}
	return n
}

// Dir returns the blob directory of snapshot id.
func Dir(id uint64) string {
	return fmt.Sprintf("v%06d", id)
}

// HeadsPath returns the head index blob name of snapshot id.
func HeadsPath(id uint64) string {
	return Dir(id) + "/heads.bin"
}

// PostingPath returns the blob name of posting list head in snapshot id.
func PostingPath(id uint64, head uint32) string {
	return fmt.Sprintf("%s/posting-%08d.bin", Dir(id), head)
}

// FileName returns the manifest blob name of snapshot id.
func FileName(id uint64) string {
	return fmt.Sprintf("%s-%06d.bin", ManifestFileName, id)
}

// ParseFileName extracts the snapshot id from a manifest blob name.
func ParseFileName(name string) (uint64, bool) {
	rest, ok := strings.CutPrefix(name, ManifestFileName+"-")
	if !ok {
		return 0, false
	}
	rest, ok = strings.CutSuffix(rest, ".bin")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Store manages manifests and the CURRENT pointer in a blob store.
type Store struct {
	store blobstore.BlobStore
	mu    sync.Mutex
}

// NewStore creates a new manifest store.
func NewStore(store blobstore.BlobStore) *Store {
	return &Store{store: store}
}

// Current returns the snapshot id CURRENT points at.
func (s *Store) Current(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current(ctx)
}

func (s *Store) current(ctx context.Context) (uint64, error) {
	content, err := blobstore.ReadAll(ctx, s.store, CurrentFileName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	id, ok := ParseFileName(string(bytes.TrimSpace(content)))
	if !ok {
		return 0, fmt.Errorf("%w: CURRENT holds %q", ErrCorrupt, content)
	}
	return id, nil
}

// Load loads the manifest CURRENT points at.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// LoadVersion loads the manifest of snapshot id.
func (s *Store) LoadVersion(ctx context.Context, id uint64) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, id)
}

func (s *Store) load(ctx context.Context, id uint64) (*Manifest, error) {
	name := FileName(id)
	data, err := blobstore.ReadAll(ctx, s.store, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s missing", ErrCorrupt, name)
		}
		return nil, fmt.Errorf("manifest: read %s: %w", name, err)
	}
	m, err := ReadBinary(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if m.ID != id {
		return nil, fmt.Errorf("%w: %s holds snapshot %d", ErrCorrupt, name, m.ID)
	}
	return m, nil
}

// Versions returns the ids of all stored manifests in ascending order.
func (s *Store) Versions(ctx context.Context) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.store.List(ctx, ManifestFileName+"-")
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for _, name := range names {
		if id, ok := ParseFileName(name); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// NextVersion returns an id above every stored manifest.
func (s *Store) NextVersion(ctx context.Context) (uint64, error) {
	ids, err := s.Versions(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 1, nil
	}
	return ids[len(ids)-1] + 1, nil
}

// Save writes the manifest blob and then points CURRENT at it. The
// snapshot's other blobs must already be written.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Version = CurrentVersion
	var buf bytes.Buffer
	if err := m.WriteBinary(&buf); err != nil {
		return err
	}

	name := FileName(m.ID)
	if err := s.store.Put(ctx, name, buf.Bytes()); err != nil {
		return fmt.Errorf("manifest: write %s: %w", name, err)
	}
	if err := s.store.Put(ctx, CurrentFileName, []byte(name)); err != nil {
		return fmt.Errorf("manifest: write %s: %w", CurrentFileName, err)
	}
	return nil
}

// Prune deletes every blob that does not belong to snapshot keep: older
// manifests, their blob directories and leftovers of failed saves.
// It returns the number of deleted blobs.
func (s *Store) Prune(ctx context.Context, keep uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.store.List(ctx, "")
	if err != nil {
		return 0, err
	}
	keepDir := Dir(keep) + "/"
	keepManifest := FileName(keep)
	deleted := 0
	for _, name := range names {
		switch {
		case name == CurrentFileName, name == keepManifest, strings.HasPrefix(name, keepDir):
			continue
		case strings.HasPrefix(name, ManifestFileName+"-"), isSnapshotBlob(name):
		default:
			// Not ours.
			continue
		}
		if err := s.store.Delete(ctx, name); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func isSnapshotBlob(name string) bool {
	dir, _, ok := strings.Cut(name, "/")
	if !ok || len(dir) < 2 || dir[0] != 'v' {
		return false
	}
	_, err := strconv.ParseUint(dir[1:], 10, 64)
	return err == nil
}

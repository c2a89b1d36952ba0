package spfresh

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"slices"
	"sync/atomic"
	"time"

	"github.com/hupe1980/spfresh/blobstore"
	"github.com/hupe1980/spfresh/distance"
	"github.com/hupe1980/spfresh/internal/headindex"
	"github.com/hupe1980/spfresh/internal/manifest"
	"github.com/hupe1980/spfresh/internal/params"
	"github.com/hupe1980/spfresh/internal/posting"
	"github.com/hupe1980/spfresh/internal/resource"
)

// Save writes a snapshot of a ready index to the local directory dir.
func (x *Index) Save(ctx context.Context, dir string) error {
	if dir == "" {
		return invalidParam("empty snapshot directory")
	}
	return x.SaveTo(ctx, blobstore.NewLocalStore(dir))
}

// SaveTo writes a snapshot of a ready index to store.
//
// The head index and every posting list are written under a new version,
// then the manifest, and finally the CURRENT pointer; blobs of older
// versions are deleted once CURRENT flips. Concurrent Adds wait for the
// save; searches continue.
func (x *Index) SaveTo(ctx context.Context, store blobstore.BlobStore) (err error) {
	if x == nil || store == nil {
		return ErrInvalidParameter
	}
	start := time.Now()
	var (
		version uint64
		written int64
	)
	defer func() {
		x.metrics.RecordSave(written, time.Since(start), err)
		x.logger.LogSave(ctx, version, written, err)
	}()
	defer recoverError(&err)

	version, written, err = x.save(ctx, store)
	return translateError(err)
}

func (x *Index) save(ctx context.Context, store blobstore.BlobStore) (uint64, int64, error) {
	x.phase.RLock()
	defer x.phase.RUnlock()

	switch x.State() {
	case StateClosed:
		return 0, 0, ErrClosed
	case StateReady:
	default:
		return 0, 0, ErrNotReady
	}

	compression, err := posting.ParseCompression(x.params.String(params.Persist, params.Compression))
	if err != nil {
		return 0, 0, invalidParam("%v", err)
	}
	x.pool.SetIOLimit(int64(x.params.Int(params.Persist, params.IOLimitBytesPerSec)))

	x.addGate.Lock()
	defer x.addGate.Unlock()

	ms := manifest.NewStore(store)
	version, err := ms.NextVersion(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list snapshots: %w", err)
	}

	ix := x.head.Load()
	m := manifest.New(version, x.dim, x.metric.String())
	m.Variant = ix.Variant().String()
	m.Compression = compression.String()
	m.NextID = x.nextID.Load()
	m.NextHead = ix.NextHead()
	if m.Params, err = x.params.MarshalBinary(); err != nil {
		return version, 0, err
	}

	var written atomic.Int64
	put := func(ctx context.Context, name string, data []byte) (manifest.BlobInfo, error) {
		if err := x.pool.AcquireIO(ctx, len(data)); err != nil {
			return manifest.BlobInfo{}, err
		}
		if err := store.Put(ctx, name, data); err != nil {
			return manifest.BlobInfo{}, err
		}
		written.Add(int64(len(data)))
		return manifest.BlobInfo{Path: name, Size: int64(len(data)), CRC: crc32.ChecksumIEEE(data)}, nil
	}

	data, err := ix.MarshalBinary()
	if err != nil {
		return version, 0, err
	}
	if m.Heads, err = put(ctx, manifest.HeadsPath(version), data); err != nil {
		return version, written.Load(), err
	}

	heads := ix.HeadIDs()
	m.Postings = make([]manifest.PostingInfo, len(heads))
	err = x.pool.ForEach(ctx, len(heads), func(ctx context.Context, i int) error {
		h := heads[i]
		v, ok := x.postings.View(h)
		if !ok {
			return fmt.Errorf("head %d has no posting list", h)
		}
		data, err := posting.EncodeList(v, h, compression)
		if err != nil {
			return err
		}
		info, err := put(ctx, manifest.PostingPath(version, h), data)
		if err != nil {
			return err
		}
		m.Postings[i] = manifest.PostingInfo{Head: h, Count: uint64(v.Len()), BlobInfo: info}
		return nil
	})
	if err != nil {
		return version, written.Load(), err
	}

	if err := ms.Save(ctx, m); err != nil {
		return version, written.Load(), err
	}

	if n, err := ms.Prune(ctx, version); err != nil {
		x.logger.WarnContext(ctx, "snapshot prune failed", "version", version, "error", err)
	} else if n > 0 {
		x.logger.DebugContext(ctx, "pruned old snapshot blobs", "version", version, "deleted", n)
	}
	return version, written.Load(), nil
}

// Load replaces the contents of x with the snapshot in the local directory dir.
func (x *Index) Load(ctx context.Context, dir string) error {
	if dir == "" {
		return invalidParam("empty snapshot directory")
	}
	return x.LoadFrom(ctx, blobstore.NewLocalStore(dir))
}

// LoadFrom replaces the contents of x with the snapshot CURRENT points at in
// store. Every blob is read and verified before anything is swapped in, so a
// failed load leaves x unchanged. The snapshot must match the index's
// dimension and metric; its tunables replace the current ones.
//
// Load is an exclusive phase. It also recovers an index whose Build failed.
func (x *Index) LoadFrom(ctx context.Context, store blobstore.BlobStore) (err error) {
	if x == nil || store == nil {
		return ErrInvalidParameter
	}
	start := time.Now()
	var snap *snapshot
	defer func() {
		var (
			read    int64
			version uint64
			vectors int
		)
		if snap != nil {
			read, version, vectors = snap.bytes, snap.manifest.ID, snap.postings.Count()
		}
		x.metrics.RecordLoad(read, time.Since(start), err)
		x.logger.LogLoad(ctx, version, vectors, err)
	}()
	defer recoverError(&err)

	x.phase.Lock()
	defer x.phase.Unlock()

	if x.State() == StateClosed {
		return ErrClosed
	}

	x.pool.SetIOLimit(int64(x.params.Int(params.Persist, params.IOLimitBytesPerSec)))
	s, err := readSnapshot(ctx, store, x.pool)
	if err != nil {
		return translateError(err)
	}
	if s.manifest.Dim != x.dim {
		return &ErrDimensionMismatch{Expected: x.dim, Actual: s.manifest.Dim}
	}
	if s.metric != x.metric {
		return invalidParam("snapshot metric %s does not match index metric %s", s.metric, x.metric)
	}
	snap = s

	x.head.Store(snap.head)
	x.postings = snap.postings
	x.params.Replace(snap.params)
	x.variant.Store(int32(snap.head.Variant()))
	x.nextID.Store(snap.manifest.NextID)
	x.stageMu.Lock()
	x.staged = nil
	x.stageMu.Unlock()
	clear(x.splitSkip)
	x.state.Store(int32(StateReady))
	return nil
}

// Open loads the snapshot in the local directory dir into a new index.
func Open(ctx context.Context, dir string, optFns ...Option) (*Index, error) {
	if dir == "" {
		return nil, invalidParam("empty snapshot directory")
	}
	return OpenFrom(ctx, blobstore.NewLocalStore(dir), optFns...)
}

// OpenFrom loads the snapshot CURRENT points at in store into a new index.
// Dimension, metric and variant come from the snapshot; optFns configure
// everything else.
func OpenFrom(ctx context.Context, store blobstore.BlobStore, optFns ...Option) (*Index, error) {
	if store == nil {
		return nil, ErrInvalidParameter
	}
	m, err := manifest.NewStore(store).Load(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	metric, err := distance.ParseMetric(m.Metric)
	if err != nil {
		return nil, translateError(fmt.Errorf("%w: %w", manifest.ErrCorrupt, err))
	}
	variant, err := headindex.ParseVariant(m.Variant)
	if err != nil {
		return nil, translateError(fmt.Errorf("%w: %w", manifest.ErrCorrupt, err))
	}
	if m.Dim <= 0 {
		return nil, translateError(fmt.Errorf("%w: dimension %d", manifest.ErrCorrupt, m.Dim))
	}

	opts := append(slices.Clone(optFns), WithMetric(metric), WithVariant(variant))
	x, err := New(m.Dim, opts...)
	if err != nil {
		return nil, err
	}
	if err := x.LoadFrom(ctx, store); err != nil {
		_ = x.Close()
		return nil, err
	}
	return x, nil
}

type snapshot struct {
	manifest *manifest.Manifest
	metric   distance.Metric
	head     *headindex.Index
	postings *posting.Store
	params   *params.Store
	bytes    int64
}

// readSnapshot reads and verifies the current snapshot of store.
func readSnapshot(ctx context.Context, store blobstore.BlobStore, pool *resource.Controller) (*snapshot, error) {
	m, err := manifest.NewStore(store).Load(ctx)
	if err != nil {
		return nil, err
	}
	corrupt := func(format string, args ...any) error {
		return fmt.Errorf("%w: snapshot %d: %s", manifest.ErrCorrupt, m.ID, fmt.Sprintf(format, args...))
	}
	if m.Dim <= 0 {
		return nil, corrupt("dimension %d", m.Dim)
	}
	metric, err := distance.ParseMetric(m.Metric)
	if err != nil {
		return nil, corrupt("%v", err)
	}

	var read atomic.Int64
	readBlob := func(ctx context.Context, info manifest.BlobInfo) ([]byte, error) {
		data, err := blobstore.ReadAll(ctx, store, info.Path)
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				return nil, corrupt("%s missing", info.Path)
			}
			return nil, fmt.Errorf("read %s: %w", info.Path, err)
		}
		if err := pool.AcquireIO(ctx, len(data)); err != nil {
			return nil, err
		}
		read.Add(int64(len(data)))
		if int64(len(data)) != info.Size {
			return nil, corrupt("%s: size %d, expected %d", info.Path, len(data), info.Size)
		}
		if sum := crc32.ChecksumIEEE(data); sum != info.CRC {
			return nil, corrupt("%s: checksum %08x, expected %08x", info.Path, sum, info.CRC)
		}
		return data, nil
	}

	data, err := readBlob(ctx, m.Heads)
	if err != nil {
		return nil, err
	}
	ix, err := headindex.Unmarshal(data)
	if err != nil {
		return nil, corrupt("%v", err)
	}
	if ix.Dim() != m.Dim {
		return nil, corrupt("head index dimension %d, expected %d", ix.Dim(), m.Dim)
	}
	if ix.NextHead() != m.NextHead {
		return nil, corrupt("next head %d, expected %d", ix.NextHead(), m.NextHead)
	}

	heads := ix.HeadIDs()
	if len(m.Postings) != len(heads) {
		return nil, corrupt("%d posting lists for %d heads", len(m.Postings), len(heads))
	}
	for _, p := range m.Postings {
		if !ix.HasHead(p.Head) {
			return nil, corrupt("posting list for unknown head %d", p.Head)
		}
	}

	postings := posting.NewStore(m.Dim)
	err = pool.ForEach(ctx, len(m.Postings), func(ctx context.Context, i int) error {
		p := m.Postings[i]
		data, err := readBlob(ctx, p.BlobInfo)
		if err != nil {
			return err
		}
		l, err := posting.DecodeList(data, m.Dim)
		if err != nil {
			return corrupt("%s: %v", p.Path, err)
		}
		if l.Head() != p.Head {
			return corrupt("%s: holds head %d, expected %d", p.Path, l.Head(), p.Head)
		}
		if n := uint64(l.Len()); n != p.Count {
			return corrupt("%s: %d records, expected %d", p.Path, n, p.Count)
		}
		for _, id := range l.View().IDs {
			if id >= m.NextID {
				return corrupt("%s: id %d beyond next id %d", p.Path, id, m.NextID)
			}
		}
		if err := postings.Put(l); err != nil {
			return corrupt("duplicate posting list for head %d", p.Head)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ps := params.New()
	if len(m.Params) > 0 {
		if err := ps.UnmarshalBinary(m.Params); err != nil {
			return nil, corrupt("%v", err)
		}
	}

	return &snapshot{
		manifest: m,
		metric:   metric,
		head:     ix,
		postings: postings,
		params:   ps,
		bytes:    read.Load(),
	}, nil
}

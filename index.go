package spfresh

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/spfresh/distance"
	"github.com/hupe1980/spfresh/internal/headindex"
	"github.com/hupe1980/spfresh/internal/params"
	"github.com/hupe1980/spfresh/internal/posting"
	"github.com/hupe1980/spfresh/internal/resource"
)

// VectorID identifies a stored vector. Ids are assigned in insertion order.
type VectorID = uint64

// Index is a two-tier approximate nearest neighbor index: an in-memory head
// index of centroids routing to posting lists of full vectors.
//
// Search, Add and Save may be called concurrently. Build, Load and Close are
// exclusive phases and wait for in-flight calls.
type Index struct {
	dim     int
	metric  distance.Metric
	distFn  distance.Func
	variant atomic.Int32

	params  *params.Store
	pool    *resource.Controller
	logger  *Logger
	metrics MetricsCollector

	// phase is held shared by Search, Add and Save and exclusively by
	// Build, Load and Close.
	phase sync.RWMutex
	// addGate is held shared by Add and exclusively by Save.
	addGate sync.RWMutex

	state  atomic.Int32
	head   atomic.Pointer[headindex.Index]
	nextID atomic.Uint64

	// postings is replaced only under the exclusive phase.
	postings *posting.Store

	stageMu sync.Mutex
	staged  []posting.Record

	splitMu   sync.Mutex
	splitSkip map[uint32]int
}

// New creates an empty index for vectors of dimension dim.
func New(dim int, optFns ...Option) (*Index, error) {
	o := applyOptions(optFns)
	if dim <= 0 {
		return nil, invalidParam("dimension must be positive, got %d", dim)
	}
	if !o.variant.Valid() {
		return nil, invalidParam("unsupported variant %v", o.variant)
	}
	distFn, err := distance.Provider(o.metric)
	if err != nil {
		return nil, invalidParam("%v", err)
	}
	if o.maxCheck <= 0 {
		return nil, invalidParam("max check must be positive, got %d", o.maxCheck)
	}

	ps := params.New()
	_ = ps.Set(params.Global, params.MaxCheck, strconv.Itoa(o.maxCheck))
	_ = ps.Set(params.Global, params.NumberOfThreads, strconv.Itoa(o.threads))
	for _, p := range o.params {
		if err := ps.Set(params.Section(p.section), p.name, p.value); err != nil {
			return nil, invalidParam("%v", err)
		}
	}

	x := &Index{
		dim:     dim,
		metric:  o.metric,
		distFn:  distFn,
		params:  ps,
		pool:    resource.NewController(resource.Config{Workers: o.threads}),
		logger:  o.logger,
		metrics: o.metricsCollector,

		postings:  posting.NewStore(dim),
		splitSkip: make(map[uint32]int),
	}
	x.variant.Store(int32(o.variant))
	x.state.Store(int32(StateEmpty))

	x.logger.Debug("index created",
		"dimension", dim,
		"metric", o.metric.String(),
		"variant", o.variant.String(),
		"threads", o.threads,
		"max_check", o.maxCheck,
	)
	return x, nil
}

// Dimension returns the configured vector dimension.
func (x *Index) Dimension() int { return x.dim }

// Metric returns the configured distance metric.
func (x *Index) Metric() distance.Metric { return x.metric }

// Variant returns the head index variant used by the next Build.
func (x *Index) Variant() Variant { return Variant(x.variant.Load()) }

// State returns the readiness state.
func (x *Index) State() State {
	if x == nil {
		return StateClosed
	}
	return State(x.state.Load())
}

// IsReady reports whether the index serves searches. It has no side effects.
func (x *Index) IsReady() bool {
	return x.State() == StateReady
}

// Len returns the number of stored vectors, staged ones included.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	x.phase.RLock()
	defer x.phase.RUnlock()
	if x.State() == StateClosed {
		return 0
	}
	return x.postings.Count() + x.numStaged()
}

func (x *Index) numStaged() int {
	x.stageMu.Lock()
	defer x.stageMu.Unlock()
	return len(x.staged)
}

// SetBuildParam sets a build tunable. section names the phase ("SelectHead",
// "BuildHead", "Update", "Persist" or "" for global); names are
// case-insensitive and unknown names are kept. Values take effect on the next
// Build (or the next Add/Save for Update and Persist parameters).
func (x *Index) SetBuildParam(name, value, section string) error {
	return x.setParam(name, value, section, params.Global)
}

// SetSearchParam sets a search tunable such as MaxCheck or
// SearchInternalResultNum. An empty section means "Search".
func (x *Index) SetSearchParam(name, value, section string) error {
	return x.setParam(name, value, section, params.Search)
}

func (x *Index) setParam(name, value, section string, fallback params.Section) (err error) {
	if x == nil {
		return ErrInvalidParameter
	}
	defer recoverError(&err)
	if x.State() == StateClosed {
		return ErrClosed
	}
	if strings.TrimSpace(name) == "" {
		return invalidParam("empty parameter name")
	}
	sec := params.Section(section)
	if strings.TrimSpace(section) == "" {
		sec = fallback
	}
	if err := x.params.Set(sec, name, value); err != nil {
		return invalidParam("%v", err)
	}
	return nil
}

// Param returns the effective value of a tunable, falling back to its default.
func (x *Index) Param(section, name string) string {
	if x == nil {
		return ""
	}
	return x.params.String(params.Section(section), name)
}

// Stats describes the current shape of the index.
type Stats struct {
	State      State
	Dimension  int
	Metric     string
	Variant    string
	Vectors    int
	Staged     int
	Heads      int
	Nodes      int
	Depth      int
	Lists      int
	MaxListLen int
	NextID     uint64
	IOBytes    int64
	Workers    int
}

// Stats returns a snapshot of the index shape.
func (x *Index) Stats() (st Stats, err error) {
	if x == nil {
		return Stats{}, ErrInvalidParameter
	}
	defer recoverError(&err)

	x.phase.RLock()
	defer x.phase.RUnlock()
	if x.State() == StateClosed {
		return Stats{}, ErrClosed
	}

	st = Stats{
		State:      x.State(),
		Dimension:  x.dim,
		Metric:     x.metric.String(),
		Variant:    x.Variant().String(),
		Vectors:    x.postings.Count(),
		Staged:     x.numStaged(),
		Lists:      x.postings.NumLists(),
		MaxListLen: x.postings.MaxLen(),
		NextID:     x.nextID.Load(),
		IOBytes:    x.pool.IOBytes(),
		Workers:    x.pool.Workers(),
	}
	if ix := x.head.Load(); ix != nil {
		st.Heads = ix.NumHeads()
		st.Nodes = ix.NumNodes()
		st.Depth = ix.Depth()
	}
	return st, nil
}

// prepare validates v against the index dimension and returns a private
// copy, normalized under the cosine metric.
func (x *Index) prepare(v []float32) ([]float32, error) {
	if len(v) != x.dim {
		return nil, &ErrDimensionMismatch{Expected: x.dim, Actual: len(v)}
	}
	if !distance.IsFinite(v) {
		return nil, invalidParam("vector has a NaN or infinite component")
	}
	if !x.metric.Normalized() {
		return append([]float32(nil), v...), nil
	}
	out, ok := distance.NormalizeL2Copy(v)
	if !ok {
		return nil, invalidParam("vector has zero norm under %s metric", x.metric)
	}
	return out, nil
}

func (x *Index) maxCheck(section params.Section) int {
	return max(x.params.Int(section, params.MaxCheck), 1)
}

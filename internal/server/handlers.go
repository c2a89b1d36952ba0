package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/spfresh"
)

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		respondError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondSuccess(w, r, map[string]any{
		"status":  "healthy",
		"service": "spfresh",
		"state":   s.idx.State().String(),
	})
}

type statsResponse struct {
	State      string `json:"state"`
	Dimension  int    `json:"dimension"`
	Metric     string `json:"metric"`
	Variant    string `json:"variant"`
	Vectors    int    `json:"vectors"`
	Staged     int    `json:"staged"`
	Heads      int    `json:"heads"`
	Nodes      int    `json:"nodes"`
	Depth      int    `json:"depth"`
	MaxListLen int    `json:"max_list_len"`
	NextID     uint64 `json:"next_id"`
	IOBytes    int64  `json:"io_bytes"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.idx.Stats()
	if err != nil {
		respondIndexError(w, err)
		return
	}
	s.respondSuccess(w, r, statsResponse{
		State:      st.State.String(),
		Dimension:  st.Dimension,
		Metric:     st.Metric,
		Variant:    st.Variant,
		Vectors:    st.Vectors,
		Staged:     st.Staged,
		Heads:      st.Heads,
		Nodes:      st.Nodes,
		Depth:      st.Depth,
		MaxListLen: st.MaxListLen,
		NextID:     st.NextID,
		IOBytes:    st.IOBytes,
	})
}

type addRequest struct {
	Vectors  [][]float32 `json:"vectors"`
	Metadata []string    `json:"metadata,omitempty"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if !decode(w, r, &req) {
		return
	}
	var meta [][]byte
	if req.Metadata != nil {
		meta = make([][]byte, len(req.Metadata))
		for i, m := range req.Metadata {
			if m != "" {
				meta[i] = []byte(m)
			}
		}
	}
	ids, err := s.idx.Add(r.Context(), req.Vectors, meta)
	if err != nil {
		respondIndexError(w, err)
		return
	}
	s.respondSuccess(w, r, map[string]any{
		"ids":    ids,
		"staged": !s.idx.IsReady(),
	})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	if err := s.idx.Build(r.Context()); err != nil {
		respondIndexError(w, err)
		return
	}
	s.respondSuccess(w, r, map[string]any{
		"built":   true,
		"vectors": s.idx.Len(),
	})
}

type searchRequest struct {
	Vector          []float32 `json:"vector"`
	K               int       `json:"k"`
	MaxCheck        int       `json:"max_check,omitempty"`
	MaxHeads        int       `json:"max_heads,omitempty"`
	IncludeMetadata bool      `json:"include_metadata,omitempty"`
	// Allow restricts results to these ids.
	Allow []uint64 `json:"allow,omitempty"`
}

type searchHit struct {
	ID       uint64  `json:"id"`
	Distance float32 `json:"distance"`
	Metadata string  `json:"metadata,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decode(w, r, &req) {
		return
	}
	if req.K == 0 {
		req.K = 10
	}
	var opts []spfresh.SearchOption
	if req.MaxCheck > 0 {
		opts = append(opts, spfresh.WithSearchMaxCheck(req.MaxCheck))
	}
	if req.MaxHeads > 0 {
		opts = append(opts, spfresh.WithMaxHeads(req.MaxHeads))
	}
	if req.IncludeMetadata {
		opts = append(opts, spfresh.WithMetadata())
	}
	if req.Allow != nil {
		opts = append(opts, spfresh.WithFilter(roaring64.BitmapOf(req.Allow...)))
	}

	res, err := s.idx.Search(r.Context(), req.Vector, req.K, opts...)
	if err != nil {
		respondIndexError(w, err)
		return
	}
	hits := make([]searchHit, len(res))
	for i, h := range res {
		hits[i] = searchHit{ID: h.ID, Distance: h.Distance, Metadata: string(h.Metadata)}
	}
	s.respondSuccess(w, r, map[string]any{"results": hits})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.Snapshot(r.Context()); err != nil {
		if errors.Is(err, ErrNoStore) {
			respondError(w, err.Error(), http.StatusNotImplemented)
			return
		}
		respondIndexError(w, err)
		return
	}
	s.respondSuccess(w, r, map[string]any{"saved": true})
}

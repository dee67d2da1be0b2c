package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dgallion1/taxindex/internal/metrics"
	"github.com/dgallion1/taxindex/internal/taxonomy"
	"github.com/go-chi/chi/v5"
)

const noMatches = "no matches"

// nodeView is the wire form of a taxonomy node.
type nodeView struct {
	ID       taxonomy.NodeID   `json:"id"`
	Name     string            `json:"name"`
	Kind     string            `json:"kind"`
	Code     string            `json:"code,omitempty"`
	TaxID    string            `json:"tax_id,omitempty"`
	Path     string            `json:"path"`
	Depth    int               `json:"depth"`
	Children []taxonomy.NodeID `json:"children"`
}

func viewNode(t *taxonomy.Tree, n *taxonomy.Node) nodeView {
	children := n.Children
	if children == nil {
		children = []taxonomy.NodeID{}
	}
	return nodeView{
		ID:       n.ID,
		Name:     n.Name,
		Kind:     n.Kind.String(),
		Code:     n.Code,
		TaxID:    n.TaxID,
		Path:     t.PathString(n),
		Depth:    n.Depth,
		Children: children,
	}
}

func viewNodes(t *taxonomy.Tree, nodes []*taxonomy.Node) []nodeView {
	out := make([]nodeView, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, viewNode(t, n))
	}
	return out
}

func (s *Server) handleListTaxonomies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"taxonomies": s.catalog.List()})
}

// tree resolves the {dialect} URL parameter to a loaded tree, writing the
// error response itself when it cannot.
func (s *Server) tree(w http.ResponseWriter, r *http.Request) (*taxonomy.Tree, bool) {
	d, err := taxonomy.ParseDialect(chi.URLParam(r, "dialect"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	t, ok := s.catalog.Tree(d)
	if !ok {
		jsonError(w, fmt.Sprintf("taxonomy %s not loaded", d), http.StatusNotFound)
		return nil, false
	}
	return t, true
}

// observe records one query outcome in both the Prometheus metrics and the
// rolling latency window.
func (s *Server) observe(op, result string, start time.Time) {
	s.metrics.ObserveQuery(op, result, start)
	s.queries.Observe(op, start)
}

// reject answers a malformed query with 400 and counts it as an error. It
// stays out of the latency window, which only tracks executed lookups.
func (s *Server) reject(w http.ResponseWriter, op, msg string, start time.Time) {
	s.metrics.ObserveQuery(op, metrics.ResultError, start)
	jsonError(w, msg, http.StatusBadRequest)
}

func parseKinds(r *http.Request) ([]taxonomy.Kind, error) {
	var kinds []taxonomy.Kind
	for _, v := range r.URL.Query()["kind"] {
		k, err := taxonomy.ParseKind(v)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func (s *Server) handleCode(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tree(w, r)
	if !ok {
		return
	}
	start := time.Now()
	n, found := t.FindByCode(chi.URLParam(r, "code"))
	if !found {
		s.observe("code", metrics.ResultNothing, start)
		jsonError(w, noMatches, http.StatusNotFound)
		return
	}
	s.observe("code", metrics.ResultHit, start)
	writeJSON(w, http.StatusOK, viewNode(t, n))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tree(w, r)
	if !ok {
		return
	}
	start := time.Now()
	name := r.URL.Query().Get("name")
	if name == "" {
		s.reject(w, "search", "name is required", start)
		return
	}
	kinds, err := parseKinds(r)
	if err != nil {
		s.reject(w, "search", err.Error(), start)
		return
	}

	nodes, found := t.FindByName(name, kinds...)
	if !found {
		s.observe("search", metrics.ResultNothing, start)
		jsonError(w, noMatches, http.StatusNotFound)
		return
	}
	s.observe("search", metrics.ResultHit, start)
	writeJSON(w, http.StatusOK, map[string]any{"nodes": viewNodes(t, nodes)})
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tree(w, r)
	if !ok {
		return
	}
	start := time.Now()
	path := r.URL.Query().Get("path")
	if path == "" {
		s.reject(w, "path", "path is required", start)
		return
	}
	kinds, err := parseKinds(r)
	if err != nil {
		s.reject(w, "path", err.Error(), start)
		return
	}

	nodes, found := t.FindByPath(path, taxonomy.PathQuery{Kinds: kinds, Except: r.URL.Query()["except"]})
	if !found {
		s.observe("path", metrics.ResultNothing, start)
		jsonError(w, noMatches, http.StatusNotFound)
		return
	}
	s.observe("path", metrics.ResultHit, start)
	writeJSON(w, http.StatusOK, map[string]any{"nodes": viewNodes(t, nodes)})
}

func (s *Server) handleOrganisms(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tree(w, r)
	if !ok {
		return
	}
	start := time.Now()
	q := r.URL.Query()
	path, name := q.Get("path"), q.Get("name")
	if (path == "") == (name == "") {
		s.reject(w, "organisms", "exactly one of path or name is required", start)
		return
	}
	kinds, err := parseKinds(r)
	if err != nil {
		s.reject(w, "organisms", err.Error(), start)
		return
	}

	var codes []string
	var found bool
	if path != "" {
		codes, found = t.CodesByPath(path, taxonomy.PathQuery{Kinds: kinds, Except: q["except"]})
	} else {
		codes, found = t.CodesByName(name, kinds...)
	}
	if !found {
		s.observe("organisms", metrics.ResultNothing, start)
		jsonError(w, noMatches, http.StatusNotFound)
		return
	}
	s.observe("organisms", metrics.ResultHit, start)
	writeJSON(w, http.StatusOK, map[string]any{"codes": codes})
}

func (s *Server) handleClade(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tree(w, r)
	if !ok {
		return
	}
	start := time.Now()
	paths := r.URL.Query()["path"]
	if len(paths) == 0 {
		s.reject(w, "clade", "at least one path is required", start)
		return
	}
	excl, err := excludeUnclassified(r)
	if err != nil {
		s.reject(w, "clade", err.Error(), start)
		return
	}

	codes, err := t.Clade(paths, excl)
	if err != nil {
		s.observe("clade", metrics.ResultNothing, start)
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	s.observe("clade", metrics.ResultHit, start)
	writeJSON(w, http.StatusOK, map[string]any{"codes": codes})
}

func (s *Server) handleNested(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tree(w, r)
	if !ok {
		return
	}
	start := time.Now()
	parent, child := r.URL.Query().Get("parent"), r.URL.Query().Get("child")
	if parent == "" || child == "" {
		s.reject(w, "nested", "parent and child are required", start)
		return
	}
	excl, err := excludeUnclassified(r)
	if err != nil {
		s.reject(w, "nested", err.Error(), start)
		return
	}

	err = t.Nested(parent, child, excl)
	switch {
	case err == nil:
		s.observe("nested", metrics.ResultHit, start)
		writeJSON(w, http.StatusOK, map[string]any{"nested": true})
	case errors.Is(err, taxonomy.ErrNotNested):
		s.observe("nested", metrics.ResultHit, start)
		writeJSON(w, http.StatusOK, map[string]any{"nested": false, "reason": err.Error()})
	default:
		s.observe("nested", metrics.ResultNothing, start)
		jsonError(w, err.Error(), http.StatusNotFound)
	}
}

// excludeUnclassified reads include_unclassified; clade lookups skip
// unclassified paths unless it is true.
func excludeUnclassified(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("include_unclassified")
	if v == "" {
		return true, nil
	}
	include, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid include_unclassified: %q", v)
	}
	return !include, nil
}

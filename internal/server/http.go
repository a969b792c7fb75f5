package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/zeusync/enginedb/internal/core/models"
	"github.com/zeusync/enginedb/internal/core/observability/log"
	"github.com/zeusync/enginedb/internal/core/storage"
)

type entityView struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

type entityDetail struct {
	entityView
	Scripts []models.ScriptRef `json:"scripts"`
	Fields  map[string]any     `json:"fields"`
}

func newEntityView(e *models.Entity) entityView {
	tags := make([]string, 0, models.TagSlots)
	for _, t := range e.Tags {
		tags = append(tags, t.String())
	}
	return entityView{ID: e.ID().String(), Name: e.Name, Tags: tags}
}

// Handler routes the read-only listing endpoints and the refresh feed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /entities", s.handleEntities)
	mux.HandleFunc("GET /entities/{id}", s.handleEntity)
	mux.HandleFunc("GET /scripts", s.handleScripts)
	mux.HandleFunc("GET /ws/refresh", s.feed.handleWebSocket)
	return mux
}

func (s *Server) handleEntities(w http.ResponseWriter, _ *http.Request) {
	entities, err := s.store.ListEntities()
	if err != nil {
		s.fail(w, "list entities", err)
		return
	}
	views := make([]entityView, 0, len(entities))
	for _, e := range entities {
		views = append(views, newEntityView(e))
	}
	s.writeJSON(w, views)
}

func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid entity id", http.StatusBadRequest)
		return
	}
	e, err := s.store.LoadEntity(id)
	if err != nil {
		s.fail(w, "load entity", err)
		return
	}
	detail := entityDetail{entityView: newEntityView(e), Scripts: []models.ScriptRef{}, Fields: map[string]any{}}
	doc, err := s.store.Metadata().Load(id)
	switch {
	case err == nil:
		detail.Scripts, detail.Fields = doc.Scripts, doc.Fields
	case !errors.Is(err, storage.ErrNotFound):
		s.fail(w, "load metadata", err)
		return
	}
	s.writeJSON(w, detail)
}

func (s *Server) handleScripts(w http.ResponseWriter, _ *http.Request) {
	scripts, err := s.store.ListScripts()
	if err != nil {
		s.fail(w, "list scripts", err)
		return
	}
	if scripts == nil {
		scripts = []models.ScriptRef{}
	}
	s.writeJSON(w, scripts)
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Error("request failed", log.String("op", op), log.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", log.Error(err))
	}
}

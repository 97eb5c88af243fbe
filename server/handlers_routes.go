package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/gigledger/gigledger/routes"
)

func (s *Server) handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	var route routes.Route
	if !decodeJSON(w, r, &route) {
		return
	}
	route.ID = ""

	created, err := s.services.Routes.CreateRoute(r.Context(), principal.UserID, &route)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateRoute(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	var route routes.Route
	if !decodeJSON(w, r, &route) {
		return
	}
	route.ID = chi.URLParam(r, "id")

	updated, err := s.services.Routes.UpdateRoute(r.Context(), principal.UserID, &route)
	if err != nil {
		if errors.Is(err, routes.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	route, err := s.services.Routes.GetRoute(r.Context(), principal.UserID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, routes.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.internalError(w, err, "route get")
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	from, to, ok := parseDateWindow(w, r)
	if !ok {
		return
	}

	listed, err := s.services.Routes.ListRoutes(r.Context(), principal.UserID, from, to)
	if err != nil {
		s.internalError(w, err, "route list")
		return
	}
	if listed == nil {
		listed = []*routes.Route{}
	}
	writeJSON(w, http.StatusOK, listed)
}

func (s *Server) handleDeleteRoute(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	if err := s.services.Routes.DeleteRoute(r.Context(), principal.UserID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, routes.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.internalError(w, err, "route delete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpsertWorkType(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	var workType routes.WorkType
	if !decodeJSON(w, r, &workType) {
		return
	}

	saved, err := s.services.Routes.UpsertWorkType(r.Context(), principal.UserID, &workType)
	if err != nil {
		if errors.Is(err, routes.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleListWorkTypes(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	listed, err := s.services.Routes.ListWorkTypes(r.Context(), principal.UserID)
	if err != nil {
		s.internalError(w, err, "work type list")
		return
	}
	if listed == nil {
		listed = []*routes.WorkType{}
	}
	writeJSON(w, http.StatusOK, listed)
}

func (s *Server) handleDeleteWorkType(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	if err := s.services.Routes.DeleteWorkType(r.Context(), principal.UserID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, routes.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.internalError(w, err, "work type delete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseDateWindow reads optional from/to query params as RFC 3339 dates.
func parseDateWindow(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	var from, to time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date")
			return from, to, false
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date")
			return from, to, false
		}
		to = parsed
	}
	return from, to, true
}

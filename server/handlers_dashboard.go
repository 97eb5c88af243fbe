package server

import "net/http"

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	from, to, ok := parseDateWindow(w, r)
	if !ok {
		return
	}

	summary, err := s.services.Dashboard.Summary(r.Context(), principal.UserID, from, to)
	if err != nil {
		s.internalError(w, err, "dashboard summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

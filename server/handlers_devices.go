package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/gigledger/gigledger/devices"
)

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	var req devices.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	device, err := s.services.Devices.Register(r.Context(), principal.UserID, req)
	if err != nil {
		if errors.Is(err, devices.ErrUnknownPlatform) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.internalError(w, err, "device register")
		return
	}
	writeJSON(w, http.StatusCreated, device)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	listed, err := s.services.Devices.List(r.Context(), principal.UserID)
	if err != nil {
		s.internalError(w, err, "device list")
		return
	}
	if listed == nil {
		listed = []*devices.Device{}
	}
	writeJSON(w, http.StatusOK, listed)
}

func (s *Server) handleTouchDevice(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	if err := s.services.Devices.Touch(r.Context(), principal.UserID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, devices.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.internalError(w, err, "device touch")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnregisterDevice(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	if err := s.services.Devices.Unregister(r.Context(), principal.UserID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, devices.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.internalError(w, err, "device unregister")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

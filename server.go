package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"i4.energy/across/pulsemon/at"
	"i4.energy/across/pulsemon/modem"
	"i4.energy/across/pulsemon/monitor"
	"i4.energy/across/pulsemon/report"
)

// Engine is the part of the modem the HTTP surface reads and deletes
// stored messages through. *modem.Modem satisfies it.
type Engine interface {
	ReadSMS(ctx context.Context, index, mode int) (at.SMS, error)
	DeleteSMS(ctx context.Context, index int) error
	SignalStrength(ctx context.Context) (int, error)
}

// Server handles incoming HTTP requests for the monitor and, when one is
// configured, the modem. Modem and Gateway are nil when running without
// a modem; their routes then answer 503.
type Server struct {
	Logger    *slog.Logger
	Modem     Engine
	Gateway   *report.Gateway
	Scheduler *monitor.Scheduler
	Selector  *monitor.Selector
	Hub       *report.Hub
	Display   monitor.DisplayStatus

	once   sync.Once
	router *mux.Router
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.once.Do(s.routes)
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	r := mux.NewRouter()
	r.HandleFunc("/sms", s.handleSMS).Methods(http.MethodPost)
	r.HandleFunc("/sms/{index:[0-9]+}", s.handleReadSMS).Methods(http.MethodGet)
	r.HandleFunc("/sms/{index:[0-9]+}", s.handleDeleteSMS).Methods(http.MethodDelete)
	r.HandleFunc("/signal", s.handleSignal).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/sensor", s.handleSensor).Methods(http.MethodPut)
	if s.Hub != nil {
		r.Handle("/ws/samples", s.Hub)
	}
	s.router = r
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	s.sendJSON(w, ErrorResponse{Message: message}, statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("Failed to write response", "error", err)
	}
}

// modemStatus maps engine errors onto HTTP status codes.
func modemStatus(err error) int {
	switch {
	case errors.Is(err, modem.ErrIndexOutOfRange),
		errors.Is(err, at.ErrPhoneNumberLength),
		errors.Is(err, at.ErrMessageTooLong):
		return http.StatusBadRequest
	case errors.Is(err, modem.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, modem.ErrModemError), errors.Is(err, modem.ErrNoResponse):
		return http.StatusBadGateway
	case errors.Is(err, modem.ErrAlreadyClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) requireModem(w http.ResponseWriter) bool {
	if s.Modem == nil || s.Gateway == nil {
		s.sendError(w, "no modem configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// handleSMS queues an outbound SMS; delivery happens on the gateway worker.
func (s *Server) handleSMS(w http.ResponseWriter, r *http.Request) {
	if !s.requireModem(w) {
		return
	}

	var req report.SMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.To == "" || req.Message == "" {
		s.sendError(w, "both 'to' and 'message' fields are required", http.StatusBadRequest)
		return
	}
	if len(req.Message) > at.MaxMessageLen {
		s.sendError(w, at.ErrMessageTooLong.Error(), http.StatusBadRequest)
		return
	}

	id, err := s.Gateway.Enqueue(req)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, report.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		s.Logger.Error("Failed to queue SMS", "error", err, "to", req.To)
		s.sendError(w, err.Error(), status)
		return
	}

	s.Logger.Info("SMS queued", "id", id, "to", req.To, "message_length", len(req.Message))
	s.sendJSON(w, map[string]string{"status": "queued", "id": id}, http.StatusAccepted)
}

func (s *Server) handleReadSMS(w http.ResponseWriter, r *http.Request) {
	if !s.requireModem(w) {
		return
	}
	index, _ := strconv.Atoi(mux.Vars(r)["index"])

	mode := at.ReadMarkRead
	if r.URL.Query().Get("keep") == "true" {
		mode = at.ReadKeepState
	}

	sms, err := s.Modem.ReadSMS(r.Context(), index, mode)
	if err != nil {
		s.Logger.Error("Failed to read SMS", "error", err, "index", index)
		s.sendError(w, err.Error(), modemStatus(err))
		return
	}
	if sms.State == at.SMSStateNone {
		s.sendError(w, "no message at index", http.StatusNotFound)
		return
	}

	type SMSResponse struct {
		Index   int    `json:"index"`
		State   string `json:"state"`
		Contact string `json:"contact"`
		Body    string `json:"body"`
	}
	s.sendJSON(w, SMSResponse{
		Index:   sms.Index,
		State:   sms.State.String(),
		Contact: sms.Contact,
		Body:    sms.Body,
	}, http.StatusOK)
}

func (s *Server) handleDeleteSMS(w http.ResponseWriter, r *http.Request) {
	if !s.requireModem(w) {
		return
	}
	index, _ := strconv.Atoi(mux.Vars(r)["index"])

	if err := s.Modem.DeleteSMS(r.Context(), index); err != nil {
		s.Logger.Error("Failed to delete SMS", "error", err, "index", index)
		s.sendError(w, err.Error(), modemStatus(err))
		return
	}

	s.Logger.Info("SMS deleted", "index", index)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	if !s.requireModem(w) {
		return
	}

	type SignalResponse struct {
		RSSI       int  `json:"rssi"`
		DBm        int  `json:"dbm"`
		Detectable bool `json:"detectable"`
	}

	rssi, err := s.Modem.SignalStrength(r.Context())
	switch {
	case errors.Is(err, at.ErrSignalUnknown):
		s.sendJSON(w, SignalResponse{RSSI: 99}, http.StatusOK)
	case err != nil:
		s.Logger.Error("Failed to query signal strength", "error", err)
		s.sendError(w, err.Error(), modemStatus(err))
	default:
		s.sendJSON(w, SignalResponse{RSSI: rssi, DBm: -113 + 2*rssi, Detectable: true}, http.StatusOK)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	type StatusResponse struct {
		Display      string           `json:"display"`
		SensorActive bool             `json:"sensorActive"`
		Modem        bool             `json:"modem"`
		Latest       *monitor.Reading `json:"latest,omitempty"`
	}

	resp := StatusResponse{
		Display: s.Display.String(),
		Modem:   s.Modem != nil,
	}
	if s.Selector != nil {
		resp.SensorActive = s.Selector.Active()
	}
	if s.Scheduler != nil {
		if latest, ok := s.Scheduler.Latest(); ok {
			resp.Latest = &latest
		}
	}
	s.sendJSON(w, resp, http.StatusOK)
}

// handleSensor switches the sensor subsystem on or off.
func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	if s.Selector == nil {
		s.sendError(w, "no sensor configured", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		s.sendError(w, "field 'active' is required", http.StatusBadRequest)
		return
	}

	if err := s.Selector.SetActive(*req.Active); err != nil {
		s.Logger.Error("Failed to switch sensor", "error", err, "active", *req.Active)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.Logger.Info("Sensor switched", "active", *req.Active)
	w.WriteHeader(http.StatusNoContent)
}

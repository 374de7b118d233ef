package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/loadwatch/loadgate/pkg/gateways/weight"
	"github.com/loadwatch/loadgate/pkg/ledger"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// Server is the operator-facing HTTP surface. It reuses the engine
// components directly; telemetry never flows through it.
type Server struct {
	store      *ledger.Store
	resolver   *weight.Resolver
	dispatcher *weight.Dispatcher
	connected  func() bool
	logger     *logrus.Entry
	router     *mux.Router
}

func NewServer(store *ledger.Store, resolver *weight.Resolver, dispatcher *weight.Dispatcher, connected func() bool, logger *logrus.Entry) *Server {
	s := &Server{
		store:      store,
		resolver:   resolver,
		dispatcher: dispatcher,
		connected:  connected,
		logger:     logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/devices/register", s.handleRegisterDevice).Methods(http.MethodPost)
	apiRouter.HandleFunc("/devices/{id}/status", s.handleDeviceStatus).Methods(http.MethodGet)
	apiRouter.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	apiRouter.HandleFunc("/settings", s.handleUpdateSettings).Methods(http.MethodPost)
	apiRouter.HandleFunc("/telemetry", s.handleListTelemetry).Methods(http.MethodGet)
	apiRouter.HandleFunc("/events", s.handleListEvents).Methods(http.MethodGet)
	apiRouter.HandleFunc("/control", s.handleSendControl).Methods(http.MethodPost)
	apiRouter.HandleFunc("/control-log", s.handleListControlLog).Methods(http.MethodGet)
	return router
}

func (s *Server) Router() http.Handler {
	return s.router
}

// Run blocks serving the operator API.
func (s *Server) Run(port int) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	s.logger.Infoln("operator API listening on ", server.Addr)
	return server.ListenAndServe()
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

type envelope struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      *apiError   `json:"error,omitempty"`
	Pagination *pagination `json:"pagination,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Errorln("failed to encode response: ", err)
	}
}

func (s *Server) respondData(w http.ResponseWriter, status int, data interface{}) {
	s.respond(w, status, envelope{Success: true, Data: data})
}

func (s *Server) respondPage(w http.ResponseWriter, data interface{}, page pagination) {
	s.respond(w, http.StatusOK, envelope{Success: true, Data: data, Pagination: &page})
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := string(weight.ErrCodeStore)
	switch {
	case weight.IsValidation(err):
		status, code = http.StatusBadRequest, string(weight.ErrCodeValidation)
	case weight.IsNotFound(err) || errors.Is(err, ledger.ErrNotFound):
		status, code = http.StatusNotFound, string(weight.ErrCodeNotFound)
	case weight.IsPublish(err):
		status, code = http.StatusServiceUnavailable, string(weight.ErrCodePublish)
	case weight.IsConfig(err):
		code = string(weight.ErrCodeConfig)
	}
	if status == http.StatusInternalServerError {
		s.logger.Errorln("request failed: ", err)
	}
	s.respond(w, status, envelope{Success: false, Error: &apiError{Code: code, Message: err.Error()}})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		s.respondError(w, weight.NewValidationError("invalid JSON body: %v", err))
		return false
	}
	return true
}

func pageParams(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	if parsed, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && parsed > 0 {
		limit = parsed
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if parsed, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && parsed > 0 {
		offset = parsed
	}
	return limit, offset
}

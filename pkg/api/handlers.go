package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/loadwatch/loadgate/pkg/entities"
	"github.com/loadwatch/loadgate/pkg/gateways/weight"
	"github.com/loadwatch/loadgate/pkg/ledger"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondData(w, http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"broker_connected": s.connected(),
	})
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var request struct {
		DeviceID string `json:"device_id"`
		Name     string `json:"name"`
		Location string `json:"location"`
	}
	if !s.decode(w, r, &request) {
		return
	}
	if request.DeviceID == "" {
		s.respondError(w, weight.NewValidationError("device_id is required"))
		return
	}

	device, isNew, err := s.store.RegisterDevice(r.Context(), entities.Device{
		ID:       request.DeviceID,
		Name:     request.Name,
		Location: request.Location,
	})
	if err != nil {
		s.respondError(w, weight.NewStoreError(err, "registering device"))
		return
	}

	// A new device starts with its own setting row at the currently
	// effective global threshold, so later global changes do not silently
	// retune it.
	if isNew {
		maxWeight, err := s.resolver.Resolve(r.Context(), entities.GlobalScope)
		if err != nil {
			maxWeight = weight.DefaultMaxWeight
		}
		if _, err := s.store.InsertSetting(r.Context(), entities.Setting{
			DeviceID:  device.ID,
			MaxWeight: maxWeight,
			UpdatedBy: weight.SenderSystem,
		}); err != nil {
			s.logger.Errorln("failed to create default setting for ", device.ID, ": ", err)
		}
	}

	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	s.respondData(w, status, map[string]interface{}{
		"device":  device,
		"created": isNew,
	})
}

func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]

	status, err := s.store.GetDeviceStatus(r.Context(), deviceID)
	if errors.Is(err, ledger.ErrNotFound) {
		s.respondError(w, weight.NewNotFoundError("device %s has never reported", deviceID))
		return
	}
	if err != nil {
		s.respondError(w, weight.NewStoreError(err, "reading device status"))
		return
	}

	body := map[string]interface{}{"status": status}
	if last, err := s.store.FindLastTelemetry(r.Context(), deviceID); err == nil {
		body["last_telemetry"] = last
	} else if !errors.Is(err, ledger.ErrNotFound) {
		s.respondError(w, weight.NewStoreError(err, "reading last telemetry"))
		return
	}
	s.respondData(w, http.StatusOK, body)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")

	maxWeight, err := s.resolver.Resolve(r.Context(), deviceID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	body := map[string]interface{}{
		"device_id":  deviceID,
		"max_weight": maxWeight,
	}
	if setting, err := s.store.FindLatestSetting(r.Context(), deviceID); err == nil {
		body["setting"] = setting
	}
	s.respondData(w, http.StatusOK, body)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var request struct {
		MaxWeight float64 `json:"max_weight"`
		DeviceID  string  `json:"device_id"`
		UpdatedBy string  `json:"updated_by"`
	}
	if !s.decode(w, r, &request) {
		return
	}
	if request.UpdatedBy == "" {
		request.UpdatedBy = "operator"
	}

	setting, err := s.resolver.Update(r.Context(), request.DeviceID, request.MaxWeight, request.UpdatedBy)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondData(w, http.StatusOK, setting)
}

func (s *Server) handleListTelemetry(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	records, err := s.store.ListTelemetry(r.Context(), r.URL.Query().Get("device_id"), limit, offset)
	if err != nil {
		s.respondError(w, weight.NewStoreError(err, "listing telemetry"))
		return
	}
	s.respondPage(w, records, pagination{Limit: limit, Offset: offset, Count: len(records)})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	events, err := s.store.ListEvents(r.Context(), r.URL.Query().Get("device_id"), limit, offset)
	if err != nil {
		s.respondError(w, weight.NewStoreError(err, "listing events"))
		return
	}
	s.respondPage(w, events, pagination{Limit: limit, Offset: offset, Count: len(events)})
}

func (s *Server) handleSendControl(w http.ResponseWriter, r *http.Request) {
	var request struct {
		DeviceID string `json:"device_id"`
		SentBy   string `json:"sent_by"`
		weight.OperatorCommand
	}
	if !s.decode(w, r, &request) {
		return
	}

	result, err := s.dispatcher.SendOperatorCommand(r.Context(), request.DeviceID, request.OperatorCommand, request.SentBy)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondData(w, http.StatusAccepted, result)
}

func (s *Server) handleListControlLog(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	entries, err := s.store.ListControlLogs(r.Context(), r.URL.Query().Get("device_id"), limit, offset)
	if err != nil {
		s.respondError(w, weight.NewStoreError(err, "listing control log"))
		return
	}
	s.respondPage(w, entries, pagination{Limit: limit, Offset: offset, Count: len(entries)})
}

package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"obd_diagnostics/internal/models"
	"obd_diagnostics/internal/service"
)

func TestVehicleContextHandlers(t *testing.T) {
	veh := &mockVehicle{}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Vehicle: veh}
	r := newTestRouter(s)

	// missing make → 400
	w := doJSON(t, r, http.MethodPut, "/api/v1/vehicle/context", `{"model":"corolla"}`, "tok")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing make must be 400, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPut, "/api/v1/vehicle/context", `{"make":"toyota","model":"corolla","year":2018}`, "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("set status=%d, body=%s", w.Code, w.Body.String())
	}
	if veh.context.Make != "toyota" || veh.context.Year != 2018 {
		t.Fatalf("context not forwarded: %+v", veh.context)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/vehicle/context", "", "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("get status=%d", w.Code)
	}
	var got models.VehicleContext
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Make != "toyota" {
		t.Fatalf("unexpected context body: %s", w.Body.String())
	}
}

func TestExtendedCommandsHandler(t *testing.T) {
	veh := &mockVehicle{commands: []string{"2101", "2105"}}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Vehicle: veh}
	r := newTestRouter(s)

	w := doJSON(t, r, http.MethodGet, "/api/v1/vehicle/commands", "", "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var out struct {
		Count    int      `json:"count"`
		Commands []string `json:"commands"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || out.Commands[0] != "2101" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestDiscoverEcusHandler(t *testing.T) {
	veh := &mockVehicle{ecus: []models.EcuInfo{
		{ID: "7e0", Name: "Engine Control Module", BusAddress: "7E0"},
	}}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Vehicle: veh}
	r := newTestRouter(s)

	w := doJSON(t, r, http.MethodPost, "/api/v1/vehicle/ecus/discover", "", "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count int              `json:"count"`
		Ecus  []models.EcuInfo `json:"ecus"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 1 || out.Ecus[0].BusAddress != "7E0" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestDiscoverEcusHandler_ScanFailure(t *testing.T) {
	veh := &mockVehicle{scanErr: errTest}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Vehicle: veh}
	r := newTestRouter(s)

	w := doJSON(t, r, http.MethodPost, "/api/v1/vehicle/ecus/discover", "", "tok")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
}

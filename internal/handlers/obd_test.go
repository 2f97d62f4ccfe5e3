package handlers

import (
	"encoding/json"
	"net/http"
	"reflect"
	"testing"

	"obd_diagnostics/internal/dispatcher"
	"obd_diagnostics/internal/models"
	"obd_diagnostics/internal/service"
)

func TestSendCommandHandler(t *testing.T) {
	diag := &mockDiagnostics{resp: models.OBDResponse{
		Command: "010C",
		Success: true,
		Payload: &models.Payload{
			Kind: models.PayloadLiveData,
			Live: &models.LiveValue{PID: 0x0C, Name: "Engine RPM", Value: 1726, Unit: "rpm"},
		},
	}}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Diagnostics: diag}
	r := newTestRouter(s)

	w := doJSON(t, r, http.MethodPost, "/api/v1/obd/command", `{"command":"010C"}`, "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var out models.OBDResponse
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if !out.Success || out.Payload.Live.Value != 1726 {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if diag.lastCmd != "010C" {
		t.Fatalf("command not forwarded: %q", diag.lastCmd)
	}
}

func TestSendCommandHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "not connected", err: dispatcher.ErrNotConnected, want: http.StatusConflict},
		{name: "queue full", err: dispatcher.ErrQueueFull, want: http.StatusTooManyRequests},
		{name: "other", err: errTest, want: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			diag := &mockDiagnostics{err: tc.err}
			s := &service.Service{Authorization: &mockAuth{parseID: 1}, Diagnostics: diag}
			r := newTestRouter(s)

			w := doJSON(t, r, http.MethodPost, "/api/v1/obd/command", `{"command":"010C"}`, "tok")
			if w.Code != tc.want {
				t.Fatalf("status=%d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestLiveDataHandler(t *testing.T) {
	diag := &mockDiagnostics{live: []models.LiveValue{
		{PID: 0x0C, Name: "Engine RPM", Value: 1726, Unit: "rpm"},
		{PID: 0x0D, Name: "Vehicle Speed", Value: 60, Unit: "km/h"},
	}}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Diagnostics: diag}
	r := newTestRouter(s)

	// missing pids → 400
	w := doJSON(t, r, http.MethodGet, "/api/v1/obd/live", "", "tok")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing pids must be 400, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/obd/live?pids=010C,010D", "", "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	if !reflect.DeepEqual(diag.lastPIDs, []string{"010C", "010D"}) {
		t.Fatalf("pids not split: %v", diag.lastPIDs)
	}
	var out struct {
		Count  int                `json:"count"`
		Values []models.LiveValue `json:"values"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || out.Values[1].Value != 60 {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestDTCHandlers(t *testing.T) {
	diag := &mockDiagnostics{
		dtcs: []models.DiagnosticTroubleCode{
			{Code: "P0144", System: models.DTCPowertrain},
		},
		cleared: true,
	}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Diagnostics: diag}
	r := newTestRouter(s)

	w := doJSON(t, r, http.MethodGet, "/api/v1/obd/dtc", "", "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("read status=%d, body=%s", w.Code, w.Body.String())
	}
	var read struct {
		Count int                            `json:"count"`
		Codes []models.DiagnosticTroubleCode `json:"codes"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &read)
	if read.Count != 1 || read.Codes[0].Code != "P0144" {
		t.Fatalf("unexpected read body: %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodDelete, "/api/v1/obd/dtc", "", "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("clear status=%d, body=%s", w.Code, w.Body.String())
	}
	var clear struct {
		Cleared bool `json:"cleared"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &clear)
	if !clear.Cleared {
		t.Fatalf("unexpected clear body: %s", w.Body.String())
	}
}

func TestReadCalibrationHandler(t *testing.T) {
	diag := &mockDiagnostics{calID: "39896832"}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Diagnostics: diag}
	r := newTestRouter(s)

	w := doJSON(t, r, http.MethodGet, "/api/v1/obd/calibration", "", "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var out map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out["calibration_id"] != "39896832" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestReadVINHandler(t *testing.T) {
	diag := &mockDiagnostics{vin: "1G1JC5444R7252367"}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Diagnostics: diag}
	r := newTestRouter(s)

	w := doJSON(t, r, http.MethodGet, "/api/v1/obd/vin", "", "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var out map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out["vin"] != "1G1JC5444R7252367" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

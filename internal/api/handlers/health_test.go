package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubChecker struct {
	status, message string
}

func (s stubChecker) CheckReady() (string, string) { return s.status, s.message }

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		checker    ReadinessChecker
		wantCode   int
		wantStatus string
	}{
		{"ok", stubChecker{"ok", "kintone доступен"}, http.StatusOK, "ok"},
		{"mock", stubChecker{"degraded", "офлайн-режим"}, http.StatusOK, "degraded"},
		{"fail", stubChecker{"fail", "timeout"}, http.StatusServiceUnavailable, "fail"},
		{"nil", nil, http.StatusServiceUnavailable, "fail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("warranty-service", "kintone", tt.checker)
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("статус = %d, ожидался %d", rec.Code, tt.wantCode)
			}
			var resp healthReadyResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, ожидался %q", resp.Status, tt.wantStatus)
			}
			if _, ok := resp.Checks["kintone"]; !ok {
				t.Errorf("checks = %v, ожидался ключ kintone", resp.Checks)
			}
		})
	}
}

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler("warranty-service", "mock", nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("статус = %d", rec.Code)
	}
	var resp healthLiveResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Service != "warranty-service" || resp.Status != "ok" {
		t.Errorf("ответ = %+v", resp)
	}
}

// dephealth_test.go — тесты сборки DephealthService для разных хранилищ.
package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewDephealthService_Kintone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	ds, err := NewDephealthServiceWithRegisterer(
		"warranty-service", "honpokun",
		DephealthTargets{KintoneBaseURL: srv.URL},
		15*time.Second, testLogger(), prometheus.NewRegistry(),
	)
	if err != nil {
		t.Fatalf("NewDephealthServiceWithRegisterer() ошибка: %v", err)
	}
	if len(ds.deps) != 1 || ds.deps[0] != "kintone" {
		t.Errorf("deps = %v, ожидалось [kintone]", ds.deps)
	}
}

func TestNewDephealthService_NoTargets(t *testing.T) {
	_, err := NewDephealthServiceWithRegisterer(
		"warranty-service", "honpokun",
		DephealthTargets{},
		15*time.Second, testLogger(), prometheus.NewRegistry(),
	)
	if err == nil {
		t.Fatal("ожидалась ошибка при отсутствии зависимостей")
	}
}

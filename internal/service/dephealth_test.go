package service

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestReadiness(t *testing.T) {
	tests := []struct {
		name   string
		health map[string]bool
		want   string
	}{
		{"нет результатов", map[string]bool{}, "degraded"},
		{"nil", nil, "degraded"},
		{"всё доступно", map[string]bool{GenerationServiceDep: true}, "ok"},
		{"сервис недоступен", map[string]bool{GenerationServiceDep: false}, "fail"},
		{"частично", map[string]bool{"a": true, "b": false}, "fail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := readiness(tt.health)
			if status != tt.want {
				t.Errorf("статус = %q, ожидался %q", status, tt.want)
			}
			if msg == "" {
				t.Error("сообщение не должно быть пустым")
			}
		})
	}
}

func TestReadiness_ListsFailed(t *testing.T) {
	_, msg := readiness(map[string]bool{"b": false, "a": false, "c": true})
	if msg != "недоступны: a, b" {
		t.Errorf("сообщение = %q", msg)
	}
}

func TestNewDephealthServiceWithRegisterer(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"http", "http://generation.local:8080"},
		{"https", "https://generation.local:8443"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := NewDephealthServiceWithRegisterer(DephealthParams{
				ServiceID:     "generation-workbench",
				Group:         "test",
				ServiceURL:    tt.url,
				HealthPath:    "/health",
				CheckInterval: 15 * time.Second,
				IsEntry:       true,
			}, testLogger(), prometheus.NewRegistry())
			if err != nil {
				t.Fatalf("NewDephealthServiceWithRegisterer: %v", err)
			}
			if ds == nil {
				t.Fatal("ожидался сервис")
			}
		})
	}
}

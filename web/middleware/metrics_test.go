// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hashicorp/go-metrics"
)

type mockCounter struct {
	mu   sync.Mutex
	data map[string]float32
}

func (m *mockCounter) IncrCounterWithLabels(key []string, val float32, labels []metrics.Label) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := strings.Join(key, ".")
	for _, label := range labels {
		s += fmt.Sprintf(",%v:%v", label.Name, label.Value)
	}
	m.data[s] += val
}

func (m *mockCounter) get(key string) float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

func TestInstrument(t *testing.T) {
	m := &mockCounter{data: map[string]float32{}}
	mux := http.NewServeMux()
	mux.Handle("/ok", InstrumentWith(m, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})))
	mux.Handle("/silent", InstrumentWith(m, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	mux.Handle("/fail", InstrumentWith(m, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	})))
	ts := httptest.NewServer(mux)
	defer ts.Close()

	for _, path := range []string{"/ok", "/ok", "/silent", "/fail"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}
	for key, want := range map[string]float32{
		"http.response,method:GET,endpoint:/ok,status:200":     2,
		"http.response,method:GET,endpoint:/silent,status:200": 1,
		"http.response,method:GET,endpoint:/fail,status:400":   1,
	} {
		if got := m.get(key); got != want {
			t.Errorf("%v=%v, want %v", key, got, want)
		}
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	gometrics "github.com/rcrowley/go-metrics"
)

// Largest body accepted by POST /publish.
const maxPublishBytes = 1 << 20

func newDebugHandler(h *hub) http.Handler {
	handler := mux.NewRouter()
	route(handler, "GET", "/healthz", healthHandler{h: h})
	route(handler, "GET", "/metrics", metricsHandler{reg: m.reg})
	route(handler, "POST", "/publish", publishHandler{h: h})
	return handler
}

// route serves path for method only; any other method on path gets 405.
func route(r *mux.Router, method, path string, h http.Handler) {
	r.Methods(method).Path(path).Handler(h)
	r.Path(path).Handler(methodNotAllowed(method))
}

func methodNotAllowed(allow string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		http.Error(w, "Error: method not allowed.", http.StatusMethodNotAllowed)
	})
}

type healthHandler struct {
	h *hub
}

func (hh healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats, err := hh.h.stats(r.Context())
	if err != nil {
		http.Error(w, "Error: relay unavailable.", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

type metricsHandler struct {
	reg gometrics.Registry
}

func (mh metricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	gometrics.WriteJSONOnce(mh.reg, w)
}

type publishHandler struct {
	h *hub
}

func (ph publishHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPublishBytes))
	if err != nil {
		sendBadRequestError(w, "Unable to read POST body.")
		return
	}
	payload := trimPayload(body)
	if len(payload) == 0 {
		sendBadRequestError(w, "Empty message.")
		return
	}
	if !ph.h.enqueue(command{cmd: PUBLISH, text: payload}) {
		http.Error(w, "Error: relay unavailable.", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("OK\n"))
}

func sendBadRequestError(w http.ResponseWriter, str string) {
	http.Error(w,
		fmt.Sprintf("Error: bad request. %s", str),
		http.StatusBadRequest)
}

package tracking

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// fakeServer is an in-memory stand-in for the tracking REST API.
type fakeServer struct {
	mu          sync.Mutex
	experiments map[string]string
	params      map[string]map[string]string
	metrics     map[string]map[string]float64
	status      map[string]string
	calls       map[string]int
	nextID      int

	// createStatus, when non-zero, makes experiments/create fail with it.
	createStatus int
	createCode   string
	// lookupStatus, when non-zero, makes get-by-name fail with it.
	lookupStatus int
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	f := &fakeServer{
		experiments: map[string]string{},
		params:      map[string]map[string]string{},
		metrics:     map[string]map[string]float64{},
		status:      map[string]string{},
		calls:       map[string]int{},
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeServer) count(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

func (f *fakeServer) param(runID, key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params[runID][key]
}

func (f *fakeServer) metric(runID, key string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics[runID][key]
}

func (f *fakeServer) runStatus(runID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status[runID]
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	endpoint := r.URL.Path[len(apiPrefix):]
	f.calls[endpoint]++

	var body map[string]interface{}
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", err.Error())
			return
		}
	}
	str := func(key string) string {
		s, _ := body[key].(string)
		return s
	}

	switch endpoint {
	case "experiments/create":
		if f.createStatus != 0 {
			writeError(w, f.createStatus, f.createCode, "create rejected")
			return
		}
		name := str("name")
		if _, ok := f.experiments[name]; ok {
			writeError(w, http.StatusBadRequest, ErrorCodeAlreadyExists, "Experiment '"+name+"' already exists.")
			return
		}
		f.nextID++
		id := strconv.Itoa(f.nextID)
		f.experiments[name] = id
		writeJSON(w, map[string]string{"experiment_id": id})
	case "experiments/get-by-name":
		if f.lookupStatus != 0 {
			writeError(w, f.lookupStatus, "INTERNAL_ERROR", "lookup rejected")
			return
		}
		name := r.URL.Query().Get("experiment_name")
		id, ok := f.experiments[name]
		if !ok {
			writeError(w, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "no experiment")
			return
		}
		writeJSON(w, map[string]interface{}{"experiment": map[string]string{"experiment_id": id, "name": name}})
	case "runs/create":
		f.nextID++
		runID := "run-" + strconv.Itoa(f.nextID)
		f.params[runID] = map[string]string{}
		f.metrics[runID] = map[string]float64{}
		f.status[runID] = string(RunStatusRunning)
		writeJSON(w, map[string]interface{}{"run": map[string]interface{}{
			"info": map[string]string{
				"run_id":        runID,
				"experiment_id": str("experiment_id"),
				"run_name":      str("run_name"),
				"status":        string(RunStatusRunning),
			},
		}})
	case "runs/log-parameter":
		f.params[str("run_id")][str("key")] = str("value")
		writeJSON(w, map[string]string{})
	case "runs/log-metric":
		v, _ := body["value"].(float64)
		f.metrics[str("run_id")][str("key")] = v
		writeJSON(w, map[string]string{})
	case "runs/update":
		f.status[str("run_id")] = str("status")
		writeJSON(w, map[string]string{})
	default:
		writeError(w, http.StatusNotFound, "ENDPOINT_NOT_FOUND", endpoint)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error_code": code, "message": message})
}

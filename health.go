package spaserve

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type healthResponse struct {
	Reload  bool   `json:"reload"`
	Version uint64 `json:"version"`
}

// HealthCheck answers the injected script's polls. Clients that send the
// version they were rendered with (?v=3) get reload=true while the server is
// ahead of them. Clients that don't are served clear-on-read: each change is
// reported to exactly one such poll.
func (r *Reloader) HealthCheck(w http.ResponseWriter, req *http.Request) {
	res := healthResponse{Version: r.version.Current()}
	if seen, err := strconv.ParseUint(req.URL.Query().Get("v"), 10, 64); err == nil {
		res.Reload = r.version.Since(seen)
	} else {
		res.Reload = r.version.Acknowledge()
	}
	body, err := json.Marshal(res)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

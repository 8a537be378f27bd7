package httpadapter

import (
	"encoding/json"
	"net/http"
)

func (rt *Router) requestEpisode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic       string `json:"topic"`
		HostVoice   string `json:"host_voice"`
		CoHostVoice string `json:"co_host_voice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	episode, transcript, err := rt.podcasts.RequestEpisode(
		r.Context(), r.PathValue("id"), req.Topic, req.HostVoice, req.CoHostVoice)
	if err != nil {
		rt.respondError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordEpisodeRequested(rt.service)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"episode":    episode,
		"transcript": transcript,
	})
}

func (rt *Router) getEpisode(w http.ResponseWriter, r *http.Request) {
	episode, err := rt.podcasts.GetEpisode(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, episode)
}

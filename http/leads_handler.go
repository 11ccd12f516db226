package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/yourorg/listing-gateway/vista"
)

type LeadsDeps struct {
	Provider *vista.Provider
}

func RegisterLeads(r chi.Router, d LeadsDeps) {
	r.Post("/leads", func(w http.ResponseWriter, req *http.Request) {
		var in vista.LeadInput
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			render.Status(req, http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid_json", "detail": err.Error()})
			return
		}
		result, err := d.Provider.CreateLead(req.Context(), in)
		if err != nil {
			writeUpstreamError(w, req, err)
			return
		}
		if !result.Success {
			render.Status(req, http.StatusUnprocessableEntity)
		}
		render.JSON(w, req, result)
	})
}

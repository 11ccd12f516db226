package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	httpapi "github.com/yourorg/listing-gateway/http"
	"github.com/yourorg/listing-gateway/vista"
)

func BuildRouter(provider *vista.Provider) http.Handler {
	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(120, 1*time.Minute)) // protect upstream quota
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status := provider.HealthCheck(req.Context())
		if !status.OK {
			render.Status(req, http.StatusServiceUnavailable)
		}
		render.JSON(w, req, map[string]any{
			"ok":         status.OK,
			"latency_ms": status.Latency.Milliseconds(),
			"detail":     status.Detail,
		})
	})
	r.Get("/capabilities", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, map[string]any{
			"ok":           true,
			"provider":     provider.Name(),
			"capabilities": provider.Capabilities(),
		})
	})
	httpapi.RegisterListings(r, httpapi.ListingsDeps{Provider: provider})
	httpapi.RegisterBuildings(r, httpapi.BuildingsDeps{Provider: provider})
	httpapi.RegisterLeads(r, httpapi.LeadsDeps{Provider: provider})

	return r
}

package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/yourorg/listing-gateway/vista"
)

type BuildingsDeps struct {
	Provider *vista.Provider
}

func RegisterBuildings(r chi.Router, d BuildingsDeps) {
	r.Get("/buildings", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		f := vista.BuildingFilters{
			City: q.Get("city"),
			Name: q.Get("name"),
		}
		page, limit := 1, 0
		if v := q.Get("page"); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				page = i
			}
		}
		if v := q.Get("limit"); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				limit = i
			}
		}
		result, err := d.Provider.ListBuildings(req.Context(), f, page, limit)
		if err != nil {
			writeUpstreamError(w, req, err)
			return
		}
		render.JSON(w, req, map[string]any{
			"ok":         true,
			"count":      len(result.Buildings),
			"buildings":  result.Buildings,
			"pagination": result.Pagination,
		})
	})

	r.Get("/buildings/{buildingID}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "buildingID")
		b, err := d.Provider.GetBuildingDetails(req.Context(), id)
		if err != nil {
			writeUpstreamError(w, req, err)
			return
		}
		render.JSON(w, req, map[string]any{"ok": true, "building": b})
	})
}

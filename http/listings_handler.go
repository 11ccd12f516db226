package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/yourorg/listing-gateway/vista"
)

type ListingsDeps struct {
	Provider *vista.Provider
}

type ListingsRequest struct {
	vista.Filters
	Page  *int `json:"page,omitempty"`
	Limit *int `json:"limit,omitempty"`
}

func defInt(v *int, d int) int {
	if v == nil {
		return d
	}
	return *v
}

func RegisterListings(r chi.Router, d ListingsDeps) {
	// POST: JSON body
	r.Post("/listings", func(w http.ResponseWriter, req *http.Request) {
		var body ListingsRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			render.Status(req, http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid_json", "detail": err.Error()})
			return
		}
		handleListings(w, req, d, body)
	})

	// GET: query params (compatibility)
	r.Get("/listings", func(w http.ResponseWriter, req *http.Request) {
		handleListings(w, req, d, listingsRequestFromQuery(req))
	})

	r.Get("/listings/{propertyID}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "propertyID")
		prop, err := d.Provider.GetPropertyDetails(req.Context(), id)
		if err != nil {
			writeUpstreamError(w, req, err)
			return
		}
		render.JSON(w, req, map[string]any{"ok": true, "property": prop})
	})

	r.Get("/listings/{propertyID}/photos", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "propertyID")
		gallery, err := d.Provider.GetPropertyPhotos(req.Context(), id)
		if err != nil {
			writeUpstreamError(w, req, err)
			return
		}
		render.JSON(w, req, map[string]any{
			"ok":     true,
			"count":  len(gallery.Photos),
			"source": gallery.Source,
			"photos": gallery.Photos,
		})
	})
}

func handleListings(w http.ResponseWriter, req *http.Request, d ListingsDeps, body ListingsRequest) {
	page := defInt(body.Page, 1)
	limit := defInt(body.Limit, 20)
	result, err := d.Provider.ListProperties(req.Context(), body.Filters, page, limit)
	if err != nil {
		writeUpstreamError(w, req, err)
		return
	}
	render.JSON(w, req, map[string]any{
		"ok":         true,
		"count":      len(result.Properties),
		"properties": result.Properties,
		"pagination": result.Pagination,
	})
}

func listingsRequestFromQuery(req *http.Request) ListingsRequest {
	q := req.URL.Query()
	var body ListingsRequest
	body.City = q.Get("city")
	body.Purpose = q.Get("purpose")
	body.Types = splitCSV(q.Get("types"))
	body.Characteristics = splitCSV(q.Get("characteristics"))
	body.BuildingFeatures = splitCSV(q.Get("building_features"))
	body.LocationFeatures = splitCSV(q.Get("location_features"))
	body.SeaDistance = q.Get("sea_distance")
	body.BuildingName = q.Get("building_name")
	body.Code = q.Get("code")
	body.SortKey = q.Get("sort")
	body.SortDesc = q.Get("order") == "desc"
	body.Exclusive = q.Get("exclusive") == "1"
	body.Launch = q.Get("launch") == "1"
	body.SuperHighlight = q.Get("super_highlight") == "1"
	if v := q.Get("minprice"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			body.MinPrice = f
		}
	}
	if v := q.Get("maxprice"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			body.MaxPrice = f
		}
	}
	body.Bedrooms = parseSelection(q.Get("bedrooms"))
	body.Suites = parseSelection(q.Get("suites"))
	body.Parking = parseSelection(q.Get("parking"))
	if v := q.Get("updated_since"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			body.UpdatedSince = t
		} else if t, err := time.Parse(time.RFC3339, v); err == nil {
			body.UpdatedSince = t
		}
	}
	if v := q.Get("page"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			body.Page = &i
		}
	}
	if v := q.Get("limit"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			body.Limit = &i
		}
	}
	return body
}

// parseSelection reads "3" or "3+" into an exact-or-plus selection.
func parseSelection(v string) *vista.IntSelection {
	if v == "" {
		return nil
	}
	orMore := strings.HasSuffix(v, "+")
	n, err := strconv.Atoi(strings.TrimSuffix(v, "+"))
	if err != nil || n <= 0 {
		return nil
	}
	return &vista.IntSelection{Value: n, OrMore: orMore}
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func writeUpstreamError(w http.ResponseWriter, req *http.Request, err error) {
	switch {
	case errors.Is(err, vista.ErrNotFound):
		render.Status(req, http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "not_found"})
	case errors.Is(err, vista.ErrUnauthorized):
		render.Status(req, http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "upstream_auth", "detail": "upstream rejected credentials"})
	default:
		render.Status(req, http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "upstream_error", "detail": err.Error()})
	}
}

package handlers

import (
	"net/http"

	"cleanscore-server/middleware"
	"cleanscore-server/models"
	"cleanscore-server/services"
	"cleanscore-server/utils/errors"

	"github.com/gorilla/mux"
)

// DefaultNearbyRadiusKm applies when /locations/nearby has no radius.
const DefaultNearbyRadiusKm = 5.0

type LocationHandler struct {
	locationService *services.LocationService
}

type NearbyLocationsResponse struct {
	NearbyLocations []models.Location `json:"nearby_locations"`
	Count           int               `json:"count"`
	Lat             float64           `json:"lat"`
	Lon             float64           `json:"lon"`
	Radius          float64           `json:"radius"`
}

func NewLocationHandler(locationService *services.LocationService) *LocationHandler {
	return &LocationHandler{locationService: locationService}
}

func (h *LocationHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.locationService.ListLocations(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

func (h *LocationHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.locationService.GetLocation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *LocationHandler) TopCleanest(w http.ResponseWriter, r *http.Request) {
	locs, err := h.locationService.TopCleanest(r.Context(), services.TopCleanestLimit)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

func (h *LocationHandler) GetNearbyLocations(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("lat") == "" || r.URL.Query().Get("lon") == "" {
		middleware.WriteError(w, errors.Invalid("lat and lon are required"))
		return
	}
	lat, err := queryFloat(r, "lat", 0)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	lon, err := queryFloat(r, "lon", 0)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	radius, err := queryFloat(r, "radius", DefaultNearbyRadiusKm)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	locs, err := h.locationService.FindNearby(r.Context(), lat, lon, radius)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NearbyLocationsResponse{
		NearbyLocations: locs,
		Count:           len(locs),
		Lat:             lat,
		Lon:             lon,
		Radius:          radius,
	})
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mealtime/api/internal/store"
)

// RestaurantStore defines the database methods needed by restaurant
// handlers. Satisfied by *store.Queries; narrow interface for testability.
type RestaurantStore interface {
	CreateRestaurant(ctx context.Context, arg store.RestaurantParams) (store.Restaurant, error)
	GetRestaurant(ctx context.Context, id uuid.UUID) (store.Restaurant, error)
	ListRestaurants(ctx context.Context) ([]store.Restaurant, error)
	UpdateRestaurant(ctx context.Context, arg store.RestaurantParams) (store.Restaurant, error)
	DeleteRestaurant(ctx context.Context, id uuid.UUID) error
}

// RestaurantHandler handles the restaurant directory endpoints.
type RestaurantHandler struct {
	store RestaurantStore
}

// NewRestaurantHandler creates a new RestaurantHandler.
func NewRestaurantHandler(st RestaurantStore) *RestaurantHandler {
	return &RestaurantHandler{store: st}
}

// RegisterRoutes registers restaurant endpoints on the given Chi router.
func (h *RestaurantHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type restaurantRequest struct {
	Name             string `json:"name"`
	Style            string `json:"style"`
	Kind             string `json:"kind"`
	Phone            string `json:"phone"`
	Website          string `json:"website"`
	Street           string `json:"street"`
	Housenumber      string `json:"housenumber"`
	Postal           string `json:"postal"`
	City             string `json:"city"`
	ShortDescription string `json:"short_description"`
	Description      string `json:"description"`
}

type restaurantResponse struct {
	ID               uuid.UUID `json:"id"`
	Version          uuid.UUID `json:"version"`
	Name             string    `json:"name"`
	Style            string    `json:"style"`
	Kind             string    `json:"kind"`
	Phone            string    `json:"phone"`
	Website          string    `json:"website"`
	Street           string    `json:"street"`
	Housenumber      string    `json:"housenumber"`
	Postal           string    `json:"postal"`
	City             string    `json:"city"`
	ShortDescription string    `json:"short_description"`
	Description      string    `json:"description"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type restaurantListResponse struct {
	Restaurants []restaurantResponse `json:"restaurants"`
}

func toRestaurantResponse(r store.Restaurant) restaurantResponse {
	return restaurantResponse{
		ID:               r.ID,
		Version:          r.Version,
		Name:             r.Name,
		Style:            textString(r.Style),
		Kind:             textString(r.Kind),
		Phone:            textString(r.Phone),
		Website:          textString(r.Website),
		Street:           textString(r.Street),
		Housenumber:      textString(r.Housenumber),
		Postal:           textString(r.Postal),
		City:             textString(r.City),
		ShortDescription: textString(r.ShortDescription),
		Description:      textString(r.Description),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func textString(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

func nullableText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func (req restaurantRequest) toParams(id uuid.UUID) store.RestaurantParams {
	return store.RestaurantParams{
		ID:               id,
		Name:             req.Name,
		Style:            nullableText(req.Style),
		Kind:             nullableText(req.Kind),
		Phone:            nullableText(req.Phone),
		Website:          nullableText(req.Website),
		Street:           nullableText(req.Street),
		Housenumber:      nullableText(req.Housenumber),
		Postal:           nullableText(req.Postal),
		City:             nullableText(req.City),
		ShortDescription: nullableText(req.ShortDescription),
		Description:      nullableText(req.Description),
	}
}

// --- Handlers ---

// Create handles POST /restaurants.
func (h *RestaurantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req restaurantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	restaurant, err := h.store.CreateRestaurant(r.Context(), req.toParams(uuid.Nil))
	if err != nil {
		log.Printf("ERROR: create restaurant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toRestaurantResponse(restaurant))
}

// List handles GET /restaurants.
func (h *RestaurantHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.store.ListRestaurants(r.Context())
	if err != nil {
		log.Printf("ERROR: list restaurants: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := restaurantListResponse{Restaurants: make([]restaurantResponse, len(restaurants))}
	for i, restaurant := range restaurants {
		resp.Restaurants[i] = toRestaurantResponse(restaurant)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /restaurants/{id}.
func (h *RestaurantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "restaurant")
	if !ok {
		return
	}
	restaurant, err := h.store.GetRestaurant(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "restaurant not found"})
			return
		}
		log.Printf("ERROR: get restaurant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toRestaurantResponse(restaurant))
}

// Update handles PUT /restaurants/{id}.
func (h *RestaurantHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "restaurant")
	if !ok {
		return
	}
	var req restaurantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	restaurant, err := h.store.UpdateRestaurant(r.Context(), req.toParams(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "restaurant not found"})
			return
		}
		log.Printf("ERROR: update restaurant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toRestaurantResponse(restaurant))
}

// Delete handles DELETE /restaurants/{id}.
func (h *RestaurantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "restaurant")
	if !ok {
		return
	}
	if err := h.store.DeleteRestaurant(r.Context(), id); err != nil {
		log.Printf("ERROR: delete restaurant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

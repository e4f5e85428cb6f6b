package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mealtime/api/internal/handler"
	"github.com/mealtime/api/internal/middleware"
	"github.com/mealtime/api/internal/store"
)

// mockRestaurantStore implements handler.RestaurantStore with function fields.
type mockRestaurantStore struct {
	createFn func(ctx context.Context, arg store.RestaurantParams) (store.Restaurant, error)
	getFn    func(ctx context.Context, id uuid.UUID) (store.Restaurant, error)
	listFn   func(ctx context.Context) ([]store.Restaurant, error)
	updateFn func(ctx context.Context, arg store.RestaurantParams) (store.Restaurant, error)
	deleteFn func(ctx context.Context, id uuid.UUID) error
}

func (m *mockRestaurantStore) CreateRestaurant(ctx context.Context, arg store.RestaurantParams) (store.Restaurant, error) {
	return m.createFn(ctx, arg)
}

func (m *mockRestaurantStore) GetRestaurant(ctx context.Context, id uuid.UUID) (store.Restaurant, error) {
	return m.getFn(ctx, id)
}

func (m *mockRestaurantStore) ListRestaurants(ctx context.Context) ([]store.Restaurant, error) {
	return m.listFn(ctx)
}

func (m *mockRestaurantStore) UpdateRestaurant(ctx context.Context, arg store.RestaurantParams) (store.Restaurant, error) {
	return m.updateFn(ctx, arg)
}

func (m *mockRestaurantStore) DeleteRestaurant(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func setupRestaurantRouter(t *testing.T, st handler.RestaurantStore) *chi.Mux {
	t.Helper()
	h := handler.NewRestaurantHandler(st)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Route("/restaurants", h.RegisterRoutes)
	})
	return r
}

func testRestaurant() store.Restaurant {
	return store.Restaurant{
		ID:        uuid.New(),
		Version:   uuid.New(),
		Name:      "Luigi's Pizzeria",
		Style:     pgtype.Text{String: "Italian", Valid: true},
		City:      pgtype.Text{String: "Berlin", Valid: true},
		CreatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestCreateRestaurant(t *testing.T) {
	var got store.RestaurantParams
	st := &mockRestaurantStore{
		createFn: func(ctx context.Context, arg store.RestaurantParams) (store.Restaurant, error) {
			got = arg
			r := testRestaurant()
			r.Name = arg.Name
			return r, nil
		},
	}
	r := setupRestaurantRouter(t, st)

	rec := httptest.NewRecorder()
	req := authedRequest(t, http.MethodPost, "/restaurants", map[string]string{
		"name": "Golden Dragon", "style": "Chinese", "phone": "+49 30 7654321",
	})
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got.Name != "Golden Dragon" {
		t.Errorf("stored name = %q, want Golden Dragon", got.Name)
	}
	if !got.Style.Valid || got.Style.String != "Chinese" {
		t.Errorf("stored style = %+v, want Chinese", got.Style)
	}
	if got.Website.Valid {
		t.Errorf("empty website should store as NULL, got %+v", got.Website)
	}
}

func TestCreateRestaurantRequiresName(t *testing.T) {
	called := false
	st := &mockRestaurantStore{
		createFn: func(ctx context.Context, arg store.RestaurantParams) (store.Restaurant, error) {
			called = true
			return store.Restaurant{}, nil
		},
	}
	r := setupRestaurantRouter(t, st)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/restaurants", map[string]string{"style": "Italian"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if called {
		t.Error("store should not be called for a nameless restaurant")
	}
}

func TestGetRestaurantNotFound(t *testing.T) {
	st := &mockRestaurantStore{
		getFn: func(ctx context.Context, id uuid.UUID) (store.Restaurant, error) {
			return store.Restaurant{}, pgx.ErrNoRows
		},
	}
	r := setupRestaurantRouter(t, st)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/restaurants/"+uuid.NewString(), nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListRestaurantsOmitsNullFields(t *testing.T) {
	want := testRestaurant()
	st := &mockRestaurantStore{
		listFn: func(ctx context.Context) ([]store.Restaurant, error) {
			return []store.Restaurant{want}, nil
		},
	}
	r := setupRestaurantRouter(t, st)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/restaurants", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp struct {
		Restaurants []struct {
			ID      uuid.UUID `json:"id"`
			Name    string    `json:"name"`
			Style   string    `json:"style"`
			Website string    `json:"website"`
		} `json:"restaurants"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Restaurants) != 1 {
		t.Fatalf("len = %d, want 1", len(resp.Restaurants))
	}
	got := resp.Restaurants[0]
	if got.ID != want.ID || got.Name != want.Name || got.Style != "Italian" {
		t.Errorf("restaurant = %+v", got)
	}
	if got.Website != "" {
		t.Errorf("NULL website should serialize as empty string, got %q", got.Website)
	}
}

func TestDeleteRestaurantNoContent(t *testing.T) {
	var deleted uuid.UUID
	st := &mockRestaurantStore{
		deleteFn: func(ctx context.Context, id uuid.UUID) error {
			deleted = id
			return nil
		},
	}
	r := setupRestaurantRouter(t, st)

	id := uuid.New()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(t, http.MethodDelete, "/restaurants/"+id.String(), nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if deleted != id {
		t.Errorf("deleted id = %s, want %s", deleted, id)
	}
}

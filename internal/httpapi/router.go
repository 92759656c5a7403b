package httpapi

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Filichkin/OnlineShop-sub000/internal/auth"
	"github.com/Filichkin/OnlineShop-sub000/internal/engine"
	"github.com/Filichkin/OnlineShop-sub000/internal/events"
)

// NewRouter wires the gateway routes the storefront UI talks to.
func NewRouter(session *auth.Session, cart *engine.Cart, favorites *engine.Favorites, publisher *events.Publisher, timeout time.Duration) *chi.Mux {
	cartHandler := NewCartHandler(cart, publisher, timeout)
	favoritesHandler := NewFavoritesHandler(favorites, publisher, timeout)
	authHandler := NewAuthHandler(session, cart, favorites, publisher, timeout)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestID)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", cartHandler.GetCart)
		r.Get("/summary", cartHandler.GetSummary)
		r.Post("/refresh", cartHandler.Refresh)
		r.Post("/items", cartHandler.AddItem)
		r.Patch("/items/{product_id}", cartHandler.UpdateQuantity)
		r.Delete("/items/{product_id}", cartHandler.RemoveItem)
		r.Delete("/", cartHandler.ClearCart)
	})

	r.Route("/favorites", func(r chi.Router) {
		r.Get("/", favoritesHandler.GetFavorites)
		r.Post("/refresh", favoritesHandler.Refresh)
		r.Post("/{product_id}/toggle", favoritesHandler.Toggle)
		r.Delete("/{product_id}", favoritesHandler.Remove)
		r.Delete("/", favoritesHandler.Clear)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
	})

	return r
}

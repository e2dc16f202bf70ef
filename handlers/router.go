package handlers

import (
	"net/http"

	"cleanscore-server/middleware"
	"cleanscore-server/services"

	"github.com/gorilla/mux"
)

// Deps are the services the HTTP API is built from.
type Deps struct {
	Accounts        Accounts
	PostService     *services.PostService
	LocationService *services.LocationService
	JWTSecret       string
	AllowedOrigins  []string
	MaxImageBytes   int64
}

func NewRouter(deps Deps) *mux.Router {
	authHandler := NewAuthHandler(deps.Accounts)
	postHandler := NewPostHandler(deps.PostService, deps.MaxImageBytes)
	locationHandler := NewLocationHandler(deps.LocationService)
	requireAuth := middleware.JWTMiddleware(deps.JWTSecret)

	r := mux.NewRouter()
	r.Use(middleware.ErrorMiddleware())
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.CORSMiddleware(deps.AllowedOrigins))

	r.HandleFunc("/health", Health).Methods("GET")

	// Auth routes
	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", authHandler.RegisterUser).Methods("POST", "OPTIONS")
	authRouter.HandleFunc("/login", authHandler.LoginUser).Methods("POST", "OPTIONS")
	authRouter.Handle("/me", requireAuth(http.HandlerFunc(authHandler.Me))).Methods("GET")

	// Post routes
	postRouter := r.PathPrefix("/posts").Subrouter()
	postRouter.Handle("", requireAuth(http.HandlerFunc(postHandler.CreatePost))).Methods("POST")
	postRouter.HandleFunc("", postHandler.ListPosts).Methods("GET", "OPTIONS")
	postRouter.HandleFunc("/{id}", postHandler.GetPost).Methods("GET")
	postRouter.HandleFunc("/{id}/image", postHandler.GetImage).Methods("GET")

	// Location routes; fixed paths before {id}
	locationRouter := r.PathPrefix("/locations").Subrouter()
	locationRouter.HandleFunc("", locationHandler.ListLocations).Methods("GET", "OPTIONS")
	locationRouter.HandleFunc("/top_cleanest", locationHandler.TopCleanest).Methods("GET")
	locationRouter.HandleFunc("/nearby", locationHandler.GetNearbyLocations).Methods("GET")
	locationRouter.HandleFunc("/{id}", locationHandler.GetLocation).Methods("GET")

	return r
}

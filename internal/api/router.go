package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mvalenta/meetly-be/internal/api/handlers"
	"github.com/mvalenta/meetly-be/internal/auth"
	"github.com/mvalenta/meetly-be/internal/services"
	"github.com/mvalenta/meetly-be/internal/websocket"
)

// NewRouter creates and configures a new Chi router.
//
// Read endpoints require any valid token; every mutating endpoint requires
// the admin role. Registration and login are the only public routes.
func NewRouter(hub *websocket.Hub, meetingService services.MeetingServiceProvider, userService services.UserServiceProvider, eventService services.EventServiceProvider, corsOrigin string) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{corsOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	meetingHandler := handlers.NewMeetingHandler(meetingService)
	userHandler := handlers.NewUserHandler(userService)
	eventHandler := handlers.NewEventHandler(eventService)
	wsHandler := handlers.NewWebSocketHandler(hub)

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		// Public authentication endpoints
		r.Post("/auth/register", userHandler.Register)
		r.Post("/auth/login", userHandler.Login)

		// Everything below needs a valid token
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticator())

			r.Get("/auth/me", userHandler.GetMe)

			// Live feed endpoints
			r.Get("/ws", wsHandler.Serve)
			r.Get("/ws/meetings/{id}", wsHandler.Serve)

			r.Route("/meetings", func(r chi.Router) {
				r.Get("/", meetingHandler.GetAll)
				r.With(auth.RequireAdmin()).Post("/", meetingHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", meetingHandler.Get)
					r.Get("/participants", meetingHandler.ListParticipants)
					r.Group(func(r chi.Router) {
						r.Use(auth.RequireAdmin())
						r.Put("/", meetingHandler.Update)
						r.Delete("/", meetingHandler.Delete)
						r.Post("/participants", meetingHandler.AddParticipantViaBody)
						r.Post("/users/{userId}", meetingHandler.AddParticipant)
						r.Delete("/users/{userId}", meetingHandler.RemoveParticipant)
						r.Get("/events", eventHandler.GetForMeeting)
					})
				})
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", userHandler.GetAll)
				r.With(auth.RequireAdmin()).Post("/", userHandler.Provision)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", userHandler.Get)
					r.Group(func(r chi.Router) {
						r.Use(auth.RequireAdmin())
						r.Put("/", userHandler.Update)
						r.Delete("/", userHandler.Delete)
					})
				})
			})

			r.With(auth.RequireAdmin()).Get("/events", eventHandler.GetRecent)
		})
	})

	return r
}

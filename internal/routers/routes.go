package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/gateway"
	matchManager "github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/match_management"
	roomManager "github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/room_management"
)

func corsMiddleware(frontEndURL string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{frontEndURL},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-User-ID"},
		AllowCredentials: true,
	})
}

// MatchRoutes mounts the matchmaker's HTTP surface.
func MatchRoutes(r *chi.Mux, mm *matchManager.Matchmaker, frontEndURL string) {
	r.Use(corsMiddleware(frontEndURL))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status":"success"}`))
	})
	r.Get("/check_connection/queue", mm.QueueConnectionHandler)
	r.Get("/check_connection/message_queue", mm.MessageConnectionHandler)

	r.Post("/find_match", mm.FindMatchHandler)
	r.Delete("/terminate_match", mm.TerminateMatchHandler)
	r.Post("/confirm_match/{match_id}", mm.ConfirmMatchHandler)

	r.Options("/find_match", mm.FindMatchHandler)
	r.Options("/terminate_match", mm.TerminateMatchHandler)
	r.Options("/confirm_match/{match_id}", mm.ConfirmMatchHandler)

	r.Handle("/metrics", promhttp.Handler())
}

// MatchRegistryRoutes declares the matchmaker's operations for the
// gateway's router.
func MatchRegistryRoutes() []gateway.Route {
	roles := []string{gateway.RoleAdmin, gateway.RoleUser}
	return []gateway.Route{
		{Method: http.MethodPost, Path: "/find_match", Roles: roles},
		{Method: http.MethodDelete, Path: "/terminate_match", Roles: roles},
		{Method: http.MethodPost, Path: "/confirm_match/{match_id}", Roles: roles},
		{Method: http.MethodGet, Path: "/check_connection/queue", Roles: roles},
		{Method: http.MethodGet, Path: "/check_connection/message_queue", Roles: roles},
	}
}

// CollabRoutes mounts the room manager's HTTP surface.
func CollabRoutes(r *chi.Mux, rm *roomManager.RoomManager, frontEndURL string) {
	r.Use(corsMiddleware(frontEndURL))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status":"success"}`))
	})

	r.Post("/reconnect", rm.ReconnectHandler)
	r.Post("/exit", rm.ExitHandler)
	r.Post("/terminate/{room_id}", rm.TerminateHandler)
	r.Get("/connect/{room_id}", rm.ConnectHandler)
	r.HandleFunc("/ws", rm.HeartbeatWSHandler)

	r.Options("/reconnect", rm.ReconnectHandler)
	r.Options("/exit", rm.ExitHandler)
	r.Options("/terminate/{room_id}", rm.TerminateHandler)
	r.Options("/connect/{room_id}", rm.ConnectHandler)

	r.Handle("/metrics", promhttp.Handler())
}

// CollabRegistryRoutes declares the room manager's operations for the
// gateway's router.
func CollabRegistryRoutes() []gateway.Route {
	roles := []string{gateway.RoleAdmin, gateway.RoleUser}
	return []gateway.Route{
		{Method: http.MethodPost, Path: "/reconnect", Roles: roles},
		{Method: http.MethodPost, Path: "/exit", Roles: roles},
		{Method: http.MethodPost, Path: "/terminate/{room_id}", Roles: roles},
		{Method: http.MethodGet, Path: "/connect/{room_id}", Roles: roles},
	}
}

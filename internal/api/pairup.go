package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-pairup/internal/config"
	"github.com/npezzotti/go-pairup/internal/game"
	"github.com/npezzotti/go-pairup/internal/store"
)

// PairUpApp is the HTTP surface over the game server and stores. It is a
// thin translator: request bodies in, store/game calls, stable domain
// errors mapped to status codes on the way out.
type PairUpApp struct {
	log            *log.Logger
	gs             *game.GameServer
	rooms          *store.RoomStore
	markers        *store.MarkerStore
	admin          *store.AdminStore
	mux            *http.Server
	signingKey     []byte
	allowedOrigins []string
}

func NewPairUpApp(mux *http.ServeMux, logger *log.Logger, gs *game.GameServer, rooms *store.RoomStore, markers *store.MarkerStore, admin *store.AdminStore, cfg *config.Config) *PairUpApp {
	s := &PairUpApp{
		log:            logger,
		gs:             gs,
		rooms:          rooms,
		markers:        markers,
		admin:          admin,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("POST /api/rooms", s.maintenanceMiddleware(s.createRoom))
	mux.HandleFunc("POST /api/rooms/join", s.maintenanceMiddleware(s.joinRoom))
	mux.HandleFunc("POST /api/rooms/leave", s.leaveRoom)
	mux.HandleFunc("POST /api/rooms/kick", s.kickUser)
	mux.HandleFunc("POST /api/rooms/role", s.changeRole)
	mux.HandleFunc("POST /api/rooms/start", s.startGame)
	mux.HandleFunc("POST /api/rooms/vote", s.castVote)
	mux.HandleFunc("POST /api/rooms/return", s.returnToWaiting)
	mux.HandleFunc("GET /api/rooms/poll", s.pollRoom)
	mux.HandleFunc("GET /ws", s.serveWatch)

	mux.HandleFunc("POST /api/admin/login", s.adminLogin)
	mux.HandleFunc("GET /api/admin/sessions", s.adminMiddleware(s.adminSessions))
	mux.HandleFunc("DELETE /api/admin/sessions", s.adminMiddleware(s.adminRevoke))
	mux.HandleFunc("GET /api/admin/rooms", s.adminMiddleware(s.adminListRooms))
	mux.HandleFunc("DELETE /api/admin/rooms", s.adminMiddleware(s.adminDeleteRoom))
	mux.HandleFunc("POST /api/admin/kick", s.adminMiddleware(s.adminKick))
	mux.HandleFunc("POST /api/admin/shutdown", s.adminMiddleware(s.adminShutdown))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *PairUpApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *PairUpApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

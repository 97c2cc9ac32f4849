// Package api exposes the patch, cues and live output over HTTP and a
// websocket event stream.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/bbernstein/lacylights-patch/internal/database/repositories"
	"github.com/bbernstein/lacylights-patch/internal/services/dmx"
	"github.com/bbernstein/lacylights-patch/internal/services/network"
	"github.com/bbernstein/lacylights-patch/internal/services/pubsub"
	"github.com/bbernstein/lacylights-patch/internal/services/show"
)

// Options configures the HTTP surface.
type Options struct {
	Version          string
	CORSOrigins      []string
	Debug            bool
	StreamBufferSize int           // per-topic buffer of each websocket client
	PingInterval     time.Duration // websocket keep-alive
	RequestTimeout   time.Duration // applies to REST routes only
	DefaultBroadcast string        // Art-Net target restored when the saved one is cleared
}

// Server holds the handlers' dependencies.
type Server struct {
	show     *show.Service
	dmx      *dmx.Service
	settings *repositories.SettingRepository
	pubsub   *pubsub.PubSub
	opts     Options
	started  time.Time

	upgrader websocket.Upgrader
}

// NewServer creates a new API server.
func NewServer(showService *show.Service, dmxService *dmx.Service, settings *repositories.SettingRepository, ps *pubsub.PubSub, opts Options) *Server {
	if opts.StreamBufferSize <= 0 {
		opts.StreamBufferSize = 64
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 60 * time.Second
	}
	if opts.DefaultBroadcast == "" {
		opts.DefaultBroadcast = network.GlobalBroadcast
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	return &Server{
		show:     showService,
		dmx:      dmxService,
		settings: settings,
		pubsub:   ps,
		opts:     opts,
		started:  time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for WebSocket
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		Debug:            s.opts.Debug,
	})
	router.Use(corsMiddleware.Handler)

	// The stream is long-lived and must not inherit the request timeout.
	router.Get("/ws", s.handleStream)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))

		r.Get("/health", s.handleHealth)
		r.Post("/blackout", s.handleBlackout)

		r.Route("/definitions", func(r chi.Router) {
			r.Get("/", s.handleListDefinitions)
			r.Post("/", s.handleCreateDefinition)
			r.Delete("/{id}", s.handleDeleteDefinition)
		})

		r.Route("/channels", func(r chi.Router) {
			r.Get("/", s.handleListChannels)
			r.Post("/", s.handlePatchChannel)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetChannel)
				r.Patch("/", s.handleUpdateChannel)
				r.Delete("/", s.handleUnpatchChannel)
				r.Put("/addresses/{offset}", s.handleSetAddress)
			})
		})

		r.Get("/universes/{universe}", s.handleGetUniverse)

		r.Route("/cues", func(r chi.Router) {
			r.Get("/", s.handleListCues)
			r.Post("/", s.handleRecordCue)
			r.Delete("/{number}", s.handleDeleteCue)
			r.Post("/{number}/recall", s.handleRecallCue)
		})

		r.Route("/network", func(r chi.Router) {
			r.Get("/interfaces", s.handleListInterfaces)
			r.Get("/broadcast", s.handleGetBroadcast)
			r.Put("/broadcast", s.handleSetBroadcast)
			r.Delete("/broadcast", s.handleResetBroadcast)
		})
	})

	return router
}

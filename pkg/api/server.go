package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/minegrid/pkg/api/handlers"
	"github.com/cbodonnell/minegrid/pkg/api/middleware"
	authproviders "github.com/cbodonnell/minegrid/pkg/auth/providers"
	"github.com/cbodonnell/minegrid/pkg/catalog"
	"github.com/cbodonnell/minegrid/pkg/log"
	"github.com/cbodonnell/minegrid/pkg/repositories"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
)

// ImagePathPrefix is where the defender images are served from
const ImagePathPrefix = "/image/"

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port        int
	TLS         *TLSConfig
	AllowOrigin string
	// AuthProvider restricts the history endpoint to the caller's own games. Optional.
	AuthProvider authproviders.AuthProvider
	Repository   repositories.Repository
	Catalog      catalog.Catalog
	// ImagesDir is served under ImagePathPrefix when set
	ImagesDir string
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts),
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// NewRouter builds the read-only API routes. Responses are gzip compressed when the
// client accepts it.
func NewRouter(opts NewAPIServerOptions) http.Handler {
	authMiddleware := middleware.NewAuthMiddleware(opts.AuthProvider)

	r := mux.NewRouter()
	r.Use(middleware.NewCORSMiddleware(opts.AllowOrigin))

	methods := []string{http.MethodGet, http.MethodOptions}
	// literal paths first so they are not taken for room ids
	r.Handle("/game/history", authMiddleware(handlers.HandleListHistory(opts.Repository))).Methods(methods...)
	r.Handle("/game/config", handlers.HandleGetConfig(opts.Repository)).Methods(methods...)
	r.Handle("/game/{roomId}", handlers.HandleGetGame(opts.Repository)).Methods(methods...)
	r.Handle("/images", handlers.HandleListImages(opts.Catalog)).Methods(methods...)
	if opts.ImagesDir != "" {
		r.PathPrefix(ImagePathPrefix).Handler(http.StripPrefix(ImagePathPrefix, http.FileServer(http.Dir(opts.ImagesDir)))).Methods(methods...)
	}

	return gzhttp.GzipHandler(r)
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

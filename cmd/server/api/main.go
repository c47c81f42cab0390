package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cbodonnell/minegrid/pkg/api"
	authproviders "github.com/cbodonnell/minegrid/pkg/auth/providers"
	"github.com/cbodonnell/minegrid/pkg/catalog"
	"github.com/cbodonnell/minegrid/pkg/log"
	"github.com/cbodonnell/minegrid/pkg/repositories"
	"github.com/cbodonnell/minegrid/pkg/version"
)

func main() {
	port := flag.Int("port", 9090, "port to listen on")
	allowOrigin := flag.String("allow-origin", "*", "allowed CORS origin")
	logLevel := flag.String("log-level", "info", "Log level")
	imagesDir := flag.String("images-dir", "", "Directory of defender shape images")
	migrations := flag.String("migrations", "./migrations", "Root directory of the database migrations")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, parsedLogLevel)
	log.SetDefaultLogger(logger)
	defer logger.Sync()
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting api server version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var authProvider authproviders.AuthProvider
	if firebaseProjectID := os.Getenv("MINEGRID_FIREBASE_PROJECT_ID"); firebaseProjectID != "" {
		firebaseAuthProvider, err := authproviders.NewFirebaseAuthProvider(ctx, authproviders.NewFirebaseAuthProviderOptions{
			ProjectID:       firebaseProjectID,
			APIKey:          os.Getenv("MINEGRID_FIREBASE_API_KEY"),
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		})
		if err != nil {
			panic(fmt.Sprintf("Failed to create Firebase auth provider: %v", err))
		}
		authProvider = firebaseAuthProvider
	}

	connStr := os.Getenv("MINEGRID_DATABASE_URL")
	if connStr == "" {
		connStr = "sqlite://minegrid.db"
	}
	repository, err := repositories.Open(ctx, connStr, *migrations)
	if err != nil {
		panic(fmt.Sprintf("Failed to open repository: %v", err))
	}
	defer repository.Close(context.Background())

	apiServerOpts := api.NewAPIServerOptions{
		Port:         *port,
		AllowOrigin:  *allowOrigin,
		AuthProvider: authProvider,
		Repository:   repository,
		Catalog: catalog.NewCatalog(catalog.NewCatalogOptions{
			Shapes:   repository,
			ImageDir: *imagesDir,
		}),
		ImagesDir: *imagesDir,
	}
	tlsCertFile := os.Getenv("MINEGRID_API_TLS_CERT_FILE")
	tlsKeyFile := os.Getenv("MINEGRID_API_TLS_KEY_FILE")
	if tlsCertFile != "" && tlsKeyFile != "" {
		apiServerOpts.TLS = &api.TLSConfig{
			CertFile: tlsCertFile,
			KeyFile:  tlsKeyFile,
		}
	}
	server := api.NewAPIServer(apiServerOpts)
	go server.Start()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop server: %v", err)
	}
}

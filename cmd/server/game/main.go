package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	authproviders "github.com/cbodonnell/minegrid/pkg/auth/providers"
	"github.com/cbodonnell/minegrid/pkg/catalog"
	"github.com/cbodonnell/minegrid/pkg/game"
	"github.com/cbodonnell/minegrid/pkg/log"
	"github.com/cbodonnell/minegrid/pkg/network"
	"github.com/cbodonnell/minegrid/pkg/queue"
	"github.com/cbodonnell/minegrid/pkg/repositories"
	"github.com/cbodonnell/minegrid/pkg/version"
	"github.com/cbodonnell/minegrid/pkg/workers"
)

func main() {
	port := flag.Int("port", 8080, "WebSocket port to listen on")
	logLevel := flag.String("log-level", "info", "Log level")
	boardSize := flag.Int("board-size", game.DefaultBoardSize, "Board size of rooms created without dimensions")
	roomTTL := flag.Duration("room-ttl", 30*time.Minute, "How long a room without connected members stays in memory (0 disables eviction)")
	imagesDir := flag.String("images-dir", "", "Directory of defender shape images")
	rateLimit := flag.Float64("rate-limit", 20, "Messages per second accepted from a connection (0 disables the limit)")
	rateBurst := flag.Int("rate-burst", 40, "Burst of messages accepted from a connection")
	loopInterval := flag.Duration("loop-interval", game.DefaultGameLoopInterval, "Game loop interval")
	legacySilentFailures := flag.Bool("legacy-silent-failures", false, "Only report rejected shape placements to clients")
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

	log.Info("Starting game server version %s", version.Get())
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
		log.Info("Verifying identity tokens for project %s", firebaseProjectID)
	} else {
		log.Warn("MINEGRID_FIREBASE_PROJECT_ID is not set, participant ids are not verified")
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

	shapeCatalog := catalog.NewCatalog(catalog.NewCatalogOptions{
		Shapes:   repository,
		ImageDir: *imagesDir,
	})

	clientManager := network.NewClientManager()
	clientMessageQueue := queue.NewInMemoryQueue(10000)

	networkManagerOpts := network.NewNetworkManagerOptions{
		AuthProvider:  authProvider,
		ClientManager: clientManager,
		MessageQueue:  clientMessageQueue,
		WSPort:        *port,
		RateLimit:     *rateLimit,
		RateBurst:     *rateBurst,
	}
	tlsCertFile := os.Getenv("MINEGRID_WS_TLS_CERT_FILE")
	tlsKeyFile := os.Getenv("MINEGRID_WS_TLS_KEY_FILE")
	if tlsCertFile != "" && tlsKeyFile != "" {
		networkManagerOpts.WSServerTLS = &network.TLSConfig{
			CertFile: tlsCertFile,
			KeyFile:  tlsKeyFile,
		}
	}
	networkManager := network.NewNetworkManager(networkManagerOpts)
	networkManager.Start(ctx)

	connectionEventQueue := queue.NewInMemoryQueue(1000)
	connectionEventWorker := workers.NewConnectionEventWorker(workers.NewConnectionEventWorkerOptions{
		ClientEventChan:      clientManager.GetClientEventChan(),
		ConnectionEventQueue: connectionEventQueue,
	})
	go connectionEventWorker.Start(ctx)

	saveSessionChannelSize := 1000
	saveSessionChan := make(chan workers.SaveSessionRequest, saveSessionChannelSize)
	saveSessionWorker := workers.NewSaveSessionWorker(workers.NewSaveSessionWorkerOptions{
		Repository:      repository,
		SaveSessionChan: saveSessionChan,
	})
	saveDone := make(chan struct{})
	go func() {
		defer close(saveDone)
		saveSessionWorker.Start(ctx)
	}()

	serverMessageChannelSize := 1000
	serverMessageChan := make(chan workers.ServerMessage, serverMessageChannelSize)
	serverMessageWorker := workers.NewServerMessageWorker(workers.NewServerMessageWorkerOptions{
		Sender:            networkManager,
		ServerMessageChan: serverMessageChan,
	})
	go serverMessageWorker.Start(ctx)

	registry := game.NewRegistry(game.NewRegistryOptions{
		Repository:       repository,
		Catalog:          shapeCatalog,
		DefaultBoardSize: *boardSize,
	})

	gameManager := game.NewGameManager(game.NewGameManagerOptions{
		ClientManager:        clientManager,
		ClientMessageQueue:   clientMessageQueue,
		ConnectionEventQueue: connectionEventQueue,
		Registry:             registry,
		Catalog:              shapeCatalog,
		ServerMessageChan:    serverMessageChan,
		SaveSessionChan:      saveSessionChan,
		GameLoopInterval:     *loopInterval,
		RoomTTL:              *roomTTL,
		LegacySilentFailures: *legacySilentFailures,
	})

	log.Info("Starting game manager")
	if err := gameManager.Start(ctx); err != nil {
		panic(fmt.Sprintf("Failed to start game manager: %v", err))
	}

	log.Info("Shutting down, flushing pending saves")
	<-saveDone
}

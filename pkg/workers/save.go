package workers

import (
	"context"
	"time"

	"github.com/cbodonnell/minegrid/pkg/game/types"
	"github.com/cbodonnell/minegrid/pkg/log"
	"github.com/cbodonnell/minegrid/pkg/repositories"
)

// SaveTimeout bounds a single snapshot write
const SaveTimeout = 10 * time.Second

type SaveSessionWorker struct {
	repository      repositories.Repository
	saveSessionChan <-chan SaveSessionRequest
}

type NewSaveSessionWorkerOptions struct {
	Repository      repositories.Repository
	SaveSessionChan <-chan SaveSessionRequest
}

// SaveSessionRequest carries a deep copy of a session owned by the worker.
type SaveSessionRequest struct {
	Session *types.Session
}

// NewSaveSessionWorker creates a new SaveSessionWorker.
// The worker writes session snapshots handed off by the game loop. Failures are
// logged; the next mutation of the room writes a fresh snapshot.
func NewSaveSessionWorker(opts NewSaveSessionWorkerOptions) *SaveSessionWorker {
	return &SaveSessionWorker{
		repository:      opts.Repository,
		saveSessionChan: opts.SaveSessionChan,
	}
}

func (w *SaveSessionWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case req := <-w.saveSessionChan:
			w.saveSession(ctx, req)
		}
	}
}

// drain writes snapshots still queued at shutdown.
func (w *SaveSessionWorker) drain() {
	for {
		select {
		case req := <-w.saveSessionChan:
			w.saveSession(context.Background(), req)
		default:
			return
		}
	}
}

func (w *SaveSessionWorker) saveSession(ctx context.Context, req SaveSessionRequest) {
	ctx, cancel := context.WithTimeout(ctx, SaveTimeout)
	defer cancel()

	if err := w.repository.SaveSession(ctx, req.Session); err != nil {
		log.Error("Failed to save session %s: %v", req.Session.RoomID, err)
		return
	}
	log.Trace("Saved session %s", req.Session.RoomID)
}

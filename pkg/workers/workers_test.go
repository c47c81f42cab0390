package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mocks "github.com/cbodonnell/minegrid/mocks/github.com/cbodonnell/minegrid/pkg/queue"
	gametypes "github.com/cbodonnell/minegrid/pkg/game/types"
	"github.com/cbodonnell/minegrid/pkg/messages"
	"github.com/cbodonnell/minegrid/pkg/network"
	"github.com/cbodonnell/minegrid/pkg/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	clientID uint32
	msg      *messages.Message
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor uint32
}

func (s *fakeSender) SendMessageToClient(clientID uint32, msg *messages.Message) error {
	if clientID == s.failFor {
		return errors.New("connection closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{clientID: clientID, msg: msg})
	return nil
}

func (s *fakeSender) Sent() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage{}, s.sent...)
}

func TestServerMessageWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &fakeSender{failFor: 2}
	ch := make(chan ServerMessage, 4)
	go NewServerMessageWorker(NewServerMessageWorkerOptions{
		Sender:            sender,
		ServerMessageChan: ch,
	}).Start(ctx)

	ch <- ServerMessage{
		ClientIDs: []uint32{1, 2, 3},
		Type:      messages.MessageTypeServerJoinResult,
		RequestID: "r1",
		Message:   &messages.ServerJoinResult{Success: true},
	}
	ch <- ServerMessage{
		Type:    messages.MessageTypeServerPlayerJoined,
		Message: &messages.ServerPlayerJoined{ParticipantID: "p1"},
	}

	require.Eventually(t, func() bool { return len(sender.Sent()) == 2 }, time.Second, 5*time.Millisecond)
	sent := sender.Sent()
	assert.Equal(t, uint32(1), sent[0].clientID)
	assert.Equal(t, uint32(3), sent[1].clientID)
	assert.Equal(t, "r1", sent[0].msg.RequestID)
	assert.JSONEq(t, `{"success":true}`, string(sent[0].msg.Payload))
}

type failingRepository struct {
	*repositories.MemoryRepository
}

func (r *failingRepository) SaveSession(ctx context.Context, session *gametypes.Session) error {
	if session.RoomID == "BROKEN" {
		return errors.New("disk full")
	}
	return r.MemoryRepository.SaveSession(ctx, session)
}

func TestSaveSessionWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := &failingRepository{MemoryRepository: repositories.NewMemoryRepository()}
	ch := make(chan SaveSessionRequest, 4)
	go NewSaveSessionWorker(NewSaveSessionWorkerOptions{
		Repository:      repo,
		SaveSessionChan: ch,
	}).Start(ctx)

	ch <- SaveSessionRequest{Session: gametypes.NewSession("BROKEN", "host-1", 5, 5, nil)}
	ch <- SaveSessionRequest{Session: gametypes.NewSession("ROOM01", "host-1", 5, 5, nil)}

	require.Eventually(t, func() bool {
		_, err := repo.LoadSession(ctx, "ROOM01")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	_, err := repo.LoadSession(ctx, "BROKEN")
	assert.True(t, repositories.IsNotFound(err))
}

func TestSaveSessionWorker_DrainsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := repositories.NewMemoryRepository()
	ch := make(chan SaveSessionRequest, 4)
	ch <- SaveSessionRequest{Session: gametypes.NewSession("ROOM01", "host-1", 5, 5, nil)}
	ch <- SaveSessionRequest{Session: gametypes.NewSession("ROOM02", "host-1", 5, 5, nil)}
	cancel()

	worker := NewSaveSessionWorker(NewSaveSessionWorkerOptions{
		Repository:      repo,
		SaveSessionChan: ch,
	})
	worker.Start(ctx)

	for _, roomID := range []string{"ROOM01", "ROOM02"} {
		_, err := repo.LoadSession(context.Background(), roomID)
		assert.NoError(t, err, roomID)
	}
}

func TestConnectionEventWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mockQueue := mocks.NewQueue(t)
	done := make(chan struct{}, 2)
	mockQueue.EXPECT().Enqueue(&gametypes.ConnectClientEvent{ClientID: 7, UserID: "uid-7"}).
		Run(func(item interface{}) { done <- struct{}{} }).Return(nil).Once()
	mockQueue.EXPECT().Enqueue(&gametypes.DisconnectClientEvent{ClientID: 7}).
		Run(func(item interface{}) { done <- struct{}{} }).Return(nil).Once()

	ch := make(chan network.ClientEvent, 2)
	go NewConnectionEventWorker(NewConnectionEventWorkerOptions{
		ClientEventChan:      ch,
		ConnectionEventQueue: mockQueue,
	}).Start(ctx)

	ch <- network.ClientEvent{ClientID: 7, Type: network.ClientEventTypeConnect, Data: network.ClientConnectData{UserID: "uid-7"}}
	ch <- network.ClientEvent{ClientID: 7, Type: network.ClientEventTypeDisconnect}

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for enqueue")
		}
	}
}

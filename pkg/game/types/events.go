package types

// ConnectClientEvent is queued for the game loop when a connection is accepted.
type ConnectClientEvent struct {
	ClientID uint32
	// UserID is the verified identity of the connection, empty when identities are not verified
	UserID string
}

// DisconnectClientEvent is queued for the game loop when a connection closes.
type DisconnectClientEvent struct {
	ClientID uint32
}

package providers

import "context"

// AuthProvider verifies identity tokens presented by connecting clients.
type AuthProvider interface {
	VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error)
}

// TokenClaims holds the verified identity. UID is used as the participant id.
type TokenClaims struct {
	UID string `json:"uid"`
}

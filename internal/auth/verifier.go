package auth

import (
	"context"
	"errors"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier resolves a bearer credential to a user id. Both the REST
// middleware and the WebSocket handshake verify through this interface.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (uid string, err error)
}

type firebaseVerifier struct {
	client *fbauth.Client
}

func NewFirebaseVerifier(ctx context.Context, projectID string) (TokenVerifier, error) {
	if projectID == "" {
		return nil, errors.New("firebase project id is not set")
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &firebaseVerifier{client: client}, nil
}

func (v *firebaseVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", ErrInvalidToken
	}
	return decoded.UID, nil
}

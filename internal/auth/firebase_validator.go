package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// FirebaseTokenValidator validates Firebase ID tokens issued by the
// identity provider.
type FirebaseTokenValidator struct {
	authClient *auth.Client
}

func NewFirebaseTokenValidator(ctx context.Context, credJSON string) (*FirebaseTokenValidator, error) {
	opt := option.WithCredentialsJSON([]byte(credJSON))
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Firebase Auth client: %w", err)
	}

	return &FirebaseTokenValidator{
		authClient: authClient,
	}, nil
}

// ExtractUserID verifies the ID token and returns the Firebase UID. The UID
// is what the Firestore paths (notifications, push_tokens) are keyed on.
func (f *FirebaseTokenValidator) ExtractUserID(tokenString string) (string, error) {
	token, err := f.authClient.VerifyIDToken(context.Background(), tokenString)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if token.UID == "" {
		return "", fmt.Errorf("%w: token carries no uid", ErrInvalidToken)
	}

	return token.UID, nil
}

package identity

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-live/community-chat/internal/domain"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/middleware"
)

var ErrMissingToken = errors.New("unauthorized")

// Verifier turns an opaque bearer credential into a verified identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*domain.Identity, error)
}

// JWTVerifier verifies locally signed JWTs.
type JWTVerifier struct {
	manager *jwt.Manager
}

func NewJWTVerifier(m *jwt.Manager) *JWTVerifier {
	return &JWTVerifier{manager: m}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	claims, err := v.manager.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &domain.Identity{
		UID:   claims.UID(),
		Name:  claims.DisplayName(),
		Email: claims.Email,
	}, nil
}

// VerifyFunc adapts v to the HTTP auth middleware.
func VerifyFunc(v Verifier) middleware.VerifyFunc {
	return func(ctx context.Context, token string) (*middleware.Principal, error) {
		id, err := v.Verify(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Principal{UserID: id.UID, Username: id.Name, Email: id.Email}, nil
	}
}

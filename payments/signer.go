package payments

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/pkg/errors"
)

const confirmationIssuer = "swishview-payments"

// ConfirmationClaims are carried by the token the payment provider posts back.
type ConfirmationClaims struct {
	CampaignID  string `json:"cid"`
	AmountCents int64  `json:"amt"`
	jwt.RegisteredClaims
}

// Signer signs and verifies confirmation tokens with HS256.
type Signer struct {
	key     []byte
	nowFunc func() time.Time
}

func NewSigner(key []byte, nowFunc func() time.Time) (*Signer, error) {
	if len(key) == 0 {
		return nil, errors.New("[NewSigner] signing key is required")
	}
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &Signer{key: key, nowFunc: nowFunc}, nil
}

func (s *Signer) Sign(intent *Intent) (string, error) {
	claims := ConfirmationClaims{
		CampaignID:  intent.CampaignID,
		AmountCents: intent.Amount.Cents(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    confirmationIssuer,
			Subject:   intent.PayerID,
			ID:        intent.ID,
			IssuedAt:  jwt.NewNumericDate(intent.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(intent.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", errors.Wrap(err, "[Signer.Sign] sign")
	}
	return signed, nil
}

func (s *Signer) Verify(raw string) (*ConfirmationClaims, error) {
	claims := &ConfirmationClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(confirmationIssuer),
		jwt.WithTimeFunc(s.nowFunc),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, errors.Wrap(apperrors.ErrInvalidToken, err.Error())
	}
	return claims, nil
}

package token

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gigledger/gigledger/users"
)

// DefaultAccessTokenExpiry bounds the window a stolen access token stays
// useful; there is no revocation path before expiry by design.
const DefaultAccessTokenExpiry = time.Hour

// Issuer mints and validates signed access tokens. The signing key comes from
// configuration; the issuer never generates key material itself.
type Issuer struct {
	signer   Signer
	issuer   string
	audience string
	expiry   time.Duration
	nowTime  func() time.Time
}

type IssuerOption func(*Issuer)

// WithExpiry overrides the default access token lifetime.
func WithExpiry(expiry time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.expiry = expiry
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowTime = now
	}
}

func NewIssuer(signer Signer, issuer, audience string, options ...IssuerOption) (*Issuer, error) {
	if signer == nil {
		return nil, errors.New("[NewIssuer] signer is required")
	}

	iss := &Issuer{
		signer:   signer,
		issuer:   issuer,
		audience: audience,
		expiry:   DefaultAccessTokenExpiry,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(iss)
	}
	return iss, nil
}

// Issue mints a signed access token carrying the user's identity and the
// granted scope list.
func (i *Issuer) Issue(user *users.User, scopes []Scope) (string, *Claims, error) {
	return i.issue(user.ID, user.Email, scopes, UseAccess, i.expiry, uuid.New().String())
}

// IssueAPI mints a long-lived API token bound to an existing token record ID
// (jti) with an explicit lifetime.
func (i *Issuer) IssueAPI(userID, email string, scopes []Scope, tokenID string, ttl time.Duration) (string, *Claims, error) {
	return i.issue(userID, email, scopes, UseAPI, ttl, tokenID)
}

func (i *Issuer) issue(userID, email string, scopes []Scope, use string, ttl time.Duration, jti string) (string, *Claims, error) {
	now := i.nowTime()
	claims := &Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   userID,
			Audience:  jwtlib.ClaimStrings{i.audience},
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
		Email:    email,
		Scopes:   scopes,
		TokenUse: use,
		Version:  claimsVersion,
	}

	signed, err := i.signer.Sign(claims)
	if err != nil {
		return "", nil, errors.Wrap(err, "[Issuer.Issue] sign")
	}
	return signed, claims, nil
}

// Validate verifies signature, expiry, and claim-schema well-formedness. It
// returns nil claims on any validation failure and never consults a store: a
// revoked user keeps a "valid" token until expiry, which the short lifetime
// mitigates.
func (i *Issuer) Validate(raw string) *Claims {
	claims := &Claims{}
	parsed, err := jwtlib.ParseWithClaims(raw, claims, i.signer.GetVerificationKey,
		jwtlib.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
		jwtlib.WithIssuer(i.issuer),
		jwtlib.WithAudience(i.audience),
		jwtlib.WithTimeFunc(i.nowTime),
	)
	if err != nil || !parsed.Valid {
		return nil
	}
	if claims.Version != claimsVersion || claims.Subject == "" {
		return nil
	}
	if claims.TokenUse != UseAccess && claims.TokenUse != UseAPI {
		return nil
	}
	return claims
}

package crypto

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Common token errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// TokenProvider issues and validates access tokens.
type TokenProvider interface {
	GenerateAccessToken(userID, orgID uuid.UUID, roles []string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	GetJWKS() (*JWKS, error)
}

// Claims carries the access token payload. Roles are informational only: the PDP
// never trusts them, it recomputes the permission set from the relational store.
type Claims struct {
	UserID uuid.UUID `json:"sub"`
	OrgID  uuid.UUID `json:"org,omitempty"`
	Roles  []string  `json:"roles,omitempty"`
	JTI    string    `json:"jti"`
	jwt.RegisteredClaims
}

// JWK is a single JSON Web Key.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

// JWKS is a JSON Web Key Set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWTProvider implements TokenProvider. It supports HS256 (shared secret) or
// RS256 (asymmetric, exposes a JWKS endpoint), chosen at construction time per
// spec §4.1's "configurable" requirement.
type JWTProvider struct {
	alg           string
	hmacSecret    []byte
	privateKey    *rsa.PrivateKey
	publicKey     *rsa.PublicKey
	issuer        string
	audience      string
	tokenDuration time.Duration
	kid           string
}

// NewHS256Provider builds a provider signing with a shared secret.
func NewHS256Provider(secret, issuer, audience string, ttl time.Duration) *JWTProvider {
	return &JWTProvider{
		alg:           "HS256",
		hmacSecret:    []byte(secret),
		issuer:        issuer,
		audience:      audience,
		tokenDuration: ttl,
		kid:           "sig-1",
	}
}

// NewRS256Provider builds a provider signing with an RSA private key.
// privateKeyPEM must be the PEM-encoded contents of the RSA private key.
func NewRS256Provider(privateKeyPEM, issuer, audience string, ttl time.Duration) (*JWTProvider, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block containing the private key")
	}

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		key, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err2 != nil {
			return nil, fmt.Errorf("failed to parse private key: %v | %v", err, err2)
		}
		var ok bool
		priv, ok = key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not of type *rsa.PrivateKey")
		}
	}

	return &JWTProvider{
		alg:           "RS256",
		privateKey:    priv,
		publicKey:     &priv.PublicKey,
		issuer:        issuer,
		audience:      audience,
		tokenDuration: ttl,
		kid:           "sig-1",
	}, nil
}

// GenerateAccessToken creates a signed JWT for the user, scoped to an organization.
func (p *JWTProvider) GenerateAccessToken(userID, orgID uuid.UUID, roles []string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		OrgID:  orgID,
		Roles:  roles,
		JTI:    uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
		},
	}

	signed, err := p.sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

func (p *JWTProvider) sign(claims Claims) (string, error) {
	var method jwt.SigningMethod
	var key interface{}

	switch p.alg {
	case "HS256":
		method = jwt.SigningMethodHS256
		key = p.hmacSecret
	case "RS256":
		method = jwt.SigningMethodRS256
		key = p.privateKey
	default:
		return "", fmt.Errorf("unsupported signing algorithm: %s", p.alg)
	}

	token := jwt.NewWithClaims(method, claims)
	token.Header["kid"] = p.kid
	return token.SignedString(key)
}

// ValidateToken parses and verifies the JWT's signature, expiry, issuer, audience.
func (p *JWTProvider) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		switch p.alg {
		case "HS256":
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return p.hmacSecret, nil
		case "RS256":
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return p.publicKey, nil
		default:
			return nil, fmt.Errorf("provider misconfigured")
		}
	},
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// GetJWKS returns the public key set. Empty for HS256 providers (no public key).
func (p *JWTProvider) GetJWKS() (*JWKS, error) {
	if p.alg != "RS256" {
		return &JWKS{Keys: []JWK{}}, nil
	}

	eBuf := big.NewInt(int64(p.publicKey.E)).Bytes()
	e := base64.RawURLEncoding.EncodeToString(eBuf)
	n := base64.RawURLEncoding.EncodeToString(p.publicKey.N.Bytes())

	return &JWKS{Keys: []JWK{{
		Kty: "RSA",
		Kid: p.kid,
		Use: "sig",
		N:   n,
		E:   e,
		Alg: "RS256",
	}}}, nil
}

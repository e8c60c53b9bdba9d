package tokensource

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	"github.com/foldnet/gameserver/internal/domain"
)

// defaultAudience is used when ServiceAccountKey.Audience is unset:
// every signed token is scoped to a single audience.
const defaultAudience = "https://gameserver.internal/"

const rs256Header = `{"alg":"RS256","typ":"JWT"}`

// ServiceAccountKey is the subset of a Google-style service account JSON
// key needed to sign bearer JWTs: issuer, subject, and a PKCS8 or PKCS1
// RSA private key.
type ServiceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	Audience    string `json:"audience,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Scopes      []string
}

type claims struct {
	Issuer   string `json:"iss"`
	Audience string `json:"aud"`
	Expiry   int64  `json:"exp"`
	IssuedAt int64  `json:"iat"`
	Subject  string `json:"sub,omitempty"`
	Scope    string `json:"scope,omitempty"`
}

// JWT signs RS256 bearer tokens from a service account private key. It
// implements Authority: every Fetch mints a fresh token valid for one
// hour, with claims iss/aud/exp/iat/sub/scope.
type JWT struct {
	key        ServiceAccountKey
	signingKey *rsa.PrivateKey
	now        func() time.Time
}

// ParseServiceAccountKey decodes a service account JSON key file's raw
// bytes into a ServiceAccountKey.
func ParseServiceAccountKey(raw []byte) (ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return key, fmt.Errorf("tokensource: decode service account key: %w", err)
	}
	return key, nil
}

// NewJWT parses key.PrivateKey (PEM, PKCS1 or PKCS8) and returns a JWT
// authority ready to sign tokens.
func NewJWT(key ServiceAccountKey) (*JWT, error) {
	signingKey, err := parseRSAPrivateKey(key.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("tokensource: parse service account key: %w", err)
	}
	return &JWT{key: key, signingKey: signingKey, now: time.Now}, nil
}

// Fetch signs and returns a new RS256 bearer token.
func (j *JWT) Fetch(ctx context.Context) (domain.Credential, error) {
	now := j.now().Unix()
	expiry := now + 3600

	aud := j.key.Audience
	if aud == "" {
		aud = defaultAudience
	}

	c := claims{
		Issuer:   j.key.ClientEmail,
		Audience: aud,
		Expiry:   expiry,
		IssuedAt: now,
		Subject:  j.key.ClientEmail,
		Scope:    strings.Join(j.key.Scopes, " "),
	}
	if j.key.Subject != "" {
		c.Subject = j.key.Subject
	}

	signed, err := j.sign(c)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("%w: %v", domain.ErrAuth, err)
	}

	return domain.Credential{Token: signed, ExpiresAt: expiry}, nil
}

func (j *JWT) sign(c claims) (string, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return "", err
	}

	signingInput := base64URL(rs256Header) + "." + base64URL(string(body))
	hashed := sha256.Sum256([]byte(signingInput))
	signature, err := rsa.SignPKCS1v15(rand.Reader, j.signingKey, crypto.SHA256, hashed[:])
	if err != nil {
		return "", err
	}

	return signingInput + "." + base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(signature), nil
}

func base64URL(s string) string {
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(s))
}

func parseRSAPrivateKey(pemText string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse PKCS8 key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return key, nil
}

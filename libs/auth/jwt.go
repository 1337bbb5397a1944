package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the subset of the identity provider's HS256 access token the
// service reads. Supabase-style tokens put the user id in sub and
// "authenticated" in aud.
type Claims struct {
	Sub      string   `json:"sub"`
	Role     string   `json:"role,omitempty"`
	Email    string   `json:"email,omitempty"`
	Audience Audience `json:"aud,omitempty"`
	Exp      int64    `json:"exp,omitempty"`
	Nbf      int64    `json:"nbf,omitempty"`
	Iat      int64    `json:"iat,omitempty"`
}

// Audience accepts both the string and the array form of "aud".
type Audience []string

func (a *Audience) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*a = Audience{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*a = many
	return nil
}

func (a Audience) MarshalJSON() ([]byte, error) {
	if len(a) == 1 {
		return json.Marshal(a[0])
	}
	return json.Marshal([]string(a))
}

type jwtHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ,omitempty"`
}

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret   []byte
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// NewVerifier returns a verifier for secret. A non-empty audience must be
// present in the token's aud claim.
func NewVerifier(secret, audience string) *Verifier {
	return &Verifier{
		secret:   []byte(secret),
		audience: audience,
		leeway:   30 * time.Second,
		now:      time.Now,
	}
}

func (v *Verifier) Verify(token string) (*Claims, error) {
	headerPart, rest, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrInvalidToken
	}
	payloadPart, sigPart, ok := strings.Cut(rest, ".")
	if !ok || strings.Contains(sigPart, ".") {
		return nil, ErrInvalidToken
	}

	var header jwtHeader
	if err := decodeSegment(headerPart, &header); err != nil || header.Alg != "HS256" {
		return nil, ErrInvalidToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil || !hmac.Equal(sig, sign(headerPart+"."+payloadPart, v.secret)) {
		return nil, ErrInvalidToken
	}

	var claims Claims
	if err := decodeSegment(payloadPart, &claims); err != nil {
		return nil, ErrInvalidToken
	}
	now := v.now()
	if claims.Exp > 0 && now.Add(-v.leeway).Unix() > claims.Exp {
		return nil, ErrInvalidToken
	}
	if claims.Nbf > 0 && now.Add(v.leeway).Unix() < claims.Nbf {
		return nil, ErrInvalidToken
	}
	if v.audience != "" && !slices.Contains(claims.Audience, v.audience) {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Sub) == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// SignHS256 issues a token; the service itself only verifies, so this is
// used by tests and local tooling.
func SignHS256(claims Claims, secret string) (string, error) {
	headerJSON, err := json.Marshal(jwtHeader{Alg: "HS256", Typ: "JWT"})
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	unsigned := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payloadJSON)
	return unsigned + "." + base64.RawURLEncoding.EncodeToString(sign(unsigned, []byte(secret))), nil
}

func decodeSegment(seg string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func sign(data string, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(data))
	return mac.Sum(nil)
}

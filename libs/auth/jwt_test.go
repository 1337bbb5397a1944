package auth

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestVerifyRoundTrip(t *testing.T) {
	claims := Claims{
		Sub:      "user-1",
		Role:     "authenticated",
		Audience: Audience{"authenticated"},
		Iat:      time.Now().Unix(),
		Exp:      time.Now().Add(time.Hour).Unix(),
	}
	token, err := SignHS256(claims, "test-secret")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	parsed, err := NewVerifier("test-secret", "authenticated").Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if parsed.Sub != claims.Sub || parsed.Role != claims.Role {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}
	if _, err := NewVerifier("wrong-secret", "").Verify(token); err == nil {
		t.Fatal("expected verification error with wrong secret")
	}
	if _, err := NewVerifier("test-secret", "service_role").Verify(token); err == nil {
		t.Fatal("expected audience mismatch to be rejected")
	}
}

func TestVerifyTimeClaims(t *testing.T) {
	v := NewVerifier("s", "")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return now }

	expired, _ := SignHS256(Claims{Sub: "u", Exp: now.Add(-time.Minute).Unix()}, "s")
	if _, err := v.Verify(expired); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
	withinLeeway, _ := SignHS256(Claims{Sub: "u", Exp: now.Add(-10 * time.Second).Unix()}, "s")
	if _, err := v.Verify(withinLeeway); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}
	future, _ := SignHS256(Claims{Sub: "u", Nbf: now.Add(time.Hour).Unix()}, "s")
	if _, err := v.Verify(future); err == nil {
		t.Fatal("expected not-yet-valid token to be rejected")
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	token, _ := SignHS256(Claims{Sub: "u"}, "s")
	_, rest, _ := strings.Cut(token, ".")
	noneHeader := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	if _, err := NewVerifier("s", "").Verify(noneHeader + "." + rest); err == nil {
		t.Fatal("expected alg=none to be rejected")
	}
	if _, err := NewVerifier("s", "").Verify("a.b"); err == nil {
		t.Fatal("expected malformed token to be rejected")
	}
}

func TestAudienceArrayForm(t *testing.T) {
	var c Claims
	if err := decodeSegment(base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"u","aud":["a","b"]}`)), &c); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(c.Audience) != 2 || c.Audience[1] != "b" {
		t.Fatalf("unexpected audience: %v", c.Audience)
	}
}

func TestMiddlewareWithVerifier(t *testing.T) {
	secret := "test-secret"
	token, err := SignHS256(Claims{Sub: "user-7", Role: "doctor", Exp: time.Now().Add(time.Hour).Unix()}, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	h := Middleware(NewVerifier(secret, ""))(RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CurrentUserID(r.Context()) != "user-7" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	reqBad := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqBad.Header.Set("Authorization", "Bearer badtoken")
	rwBad := httptest.NewRecorder()
	h.ServeHTTP(rwBad, reqBad)
	if rwBad.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rwBad.Code)
	}

	reqAnon := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqAnon.Header.Set(UserIDHeader, "spoofed")
	rwAnon := httptest.NewRecorder()
	h.ServeHTTP(rwAnon, reqAnon)
	if rwAnon.Code != http.StatusUnauthorized {
		t.Fatalf("expected forwarded header to be ignored when verifying tokens, got %d", rwAnon.Code)
	}
}

func TestMiddlewareTrustsGatewayHeaders(t *testing.T) {
	h := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok || id.UserID != "patient-1" || id.Role != "patient" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set(UserIDHeader, "patient-1")
	req.Header.Set(RoleHeader, "patient")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
}

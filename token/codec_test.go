package token

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mint(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("codec-test-secret-codec-test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func segment(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestDecodeWellFormed(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	raw := mint(t, jwt.MapClaims{"sub": "12", "email": "a@b.c", "role": "ETUDIANT", "iat": time.Now().Unix(), "exp": exp})

	claims, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.Role != "ETUDIANT" || claims.Subject != "12" || claims.Email != "a@b.c" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ExpiresAt.Unix() != exp {
		t.Fatalf("exp mismatch: %d != %d", claims.ExpiresAt.Unix(), exp)
	}
}

func TestDecodeIgnoresUnknownAlgorithm(t *testing.T) {
	raw := segment(`{"alg":"XYZ"}`) + "." + segment(`{"role":"ADMIN","exp":4102444800}`) + ".sig"
	claims, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.Role != "ADMIN" {
		t.Fatalf("unexpected role %q", claims.Role)
	}
}

func TestDecodeReadsOnlyClaimsSegment(t *testing.T) {
	body := segment(`{"role":"ETUDIANT","exp":4102444800}`)
	for name, raw := range map[string]string{
		"garbage header":  "not-base64!." + body + ".sig",
		"empty header":    "." + body + ".",
		"header not json": segment("hello") + "." + body + ".x",
	} {
		claims, err := Decode(raw)
		if err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		if claims.Role != "ETUDIANT" {
			t.Fatalf("%s: unexpected role %q", name, claims.Role)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	header := segment(`{"alg":"HS256","typ":"JWT"}`)
	cases := map[string]string{
		"empty":           "",
		"two segments":    "a.b",
		"four segments":   "a.b.c.d",
		"bad base64":      header + ".!!!.sig",
		"not json":        header + "." + segment("hello") + ".sig",
		"json array":      header + "." + segment(`[1,2]`) + ".sig",
		"json null":       header + "." + segment(`null`) + ".sig",
		"missing role":    header + "." + segment(`{"exp":4102444800}`) + ".sig",
		"blank role":      header + "." + segment(`{"role":"  ","exp":4102444800}`) + ".sig",
		"missing exp":     header + "." + segment(`{"role":"ADMIN"}`) + ".sig",
		"role not string": header + "." + segment(`{"role":7,"exp":4102444800}`) + ".sig",
		"exp not number":  header + "." + segment(`{"role":"ADMIN","exp":"soon"}`) + ".sig",
	}
	for name, raw := range cases {
		if _, err := Decode(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}

func TestDecodeExpiredIsNotAnError(t *testing.T) {
	raw := mint(t, jwt.MapClaims{"role": "ADMIN", "exp": time.Now().Add(-time.Hour).Unix()})
	claims, err := Decode(raw)
	if err != nil {
		t.Fatalf("expired token must decode: %v", err)
	}
	if !IsExpired(claims, time.Now()) {
		t.Fatal("expected expired")
	}
}

func TestIsExpiredBoundary(t *testing.T) {
	exp := time.Unix(1_700_000_000, 0)
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}}

	if IsExpired(claims, exp.Add(-time.Millisecond)) {
		t.Fatal("one millisecond before exp must not be expired")
	}
	if !IsExpired(claims, exp) {
		t.Fatal("now == exp must be expired")
	}
	if !IsExpired(claims, exp.Add(time.Second)) {
		t.Fatal("after exp must be expired")
	}
	if !IsExpired(nil, exp) {
		t.Fatal("nil claims must be expired")
	}
}

func TestIsExpiredPastAndFuture(t *testing.T) {
	now := time.Now()
	for _, offset := range []time.Duration{-24 * time.Hour, -time.Minute, -time.Second} {
		raw := mint(t, jwt.MapClaims{"role": "ADMIN", "exp": now.Add(offset).Unix()})
		claims, err := Decode(raw)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !IsExpired(claims, now) {
			t.Fatalf("offset %s: expected expired", offset)
		}
	}
	for _, offset := range []time.Duration{2 * time.Second, time.Minute, 24 * time.Hour} {
		raw := mint(t, jwt.MapClaims{"role": "ADMIN", "exp": now.Add(offset).Unix()})
		claims, err := Decode(raw)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if IsExpired(claims, now) {
			t.Fatalf("offset %s: expected not expired", offset)
		}
	}
}

func TestCheck(t *testing.T) {
	live := mint(t, jwt.MapClaims{"role": "ENSEIGNANT", "exp": time.Now().Add(time.Hour).Unix()})
	if _, err := Check(live, time.Now()); err != nil {
		t.Fatalf("check live: %v", err)
	}

	dead := mint(t, jwt.MapClaims{"role": "ENSEIGNANT", "exp": time.Now().Add(-time.Hour).Unix()})
	if _, err := Check(dead, time.Now()); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	if _, err := Check("x.y", time.Now()); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

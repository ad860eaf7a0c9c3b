package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/food-checkout/internal/auth"
	"github.com/noah-isme/food-checkout/internal/common"
)

func newVerifier(t *testing.T, secret string) *auth.Verifier {
	t.Helper()
	v, err := auth.NewVerifier(auth.VerifierConfig{Secret: secret, Issuer: "food-app", ClockSkew: time.Second})
	require.NoError(t, err)
	return v
}

func protected(v *auth.Verifier) http.Handler {
	return auth.Middleware{Verifier: v}.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := common.UserID(r.Context())
		_, _ = w.Write([]byte(userID))
	}))
}

func call(h http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuthAcceptsSignedToken(t *testing.T) {
	v := newVerifier(t, "s3cret")
	token, err := v.Sign("user-42", time.Minute)
	require.NoError(t, err)

	rec := call(protected(v), "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-42", rec.Body.String())

	rec = call(protected(v), "bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuthRejects(t *testing.T) {
	v := newVerifier(t, "s3cret")
	other := newVerifier(t, "different")
	forged, err := other.Sign("user-42", time.Minute)
	require.NoError(t, err)
	expired, err := v.Sign("user-42", -time.Minute)
	require.NoError(t, err)

	tok, err := jwt.NewBuilder().Subject("user-42").Issuer("food-app").Expiration(time.Now().Add(time.Minute)).Build()
	require.NoError(t, err)
	hs512, err := jwt.Sign(tok, jwt.WithKey(jwa.HS512, []byte("s3cret")))
	require.NoError(t, err)

	for name, authz := range map[string]string{
		"missing":     "",
		"not bearer":  "Basic dXNlcjpwYXNz",
		"garbage":     "Bearer not-a-token",
		"wrong key":   "Bearer " + forged,
		"expired":     "Bearer " + expired,
		"wrong alg":   "Bearer " + string(hs512),
		"empty token": "Bearer ",
	} {
		t.Run(name, func(t *testing.T) {
			rec := call(protected(v), authz)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Contains(t, rec.Body.String(), common.CodeUnauthorized)
		})
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := auth.NewVerifier(auth.VerifierConfig{Secret: "  "})
	require.Error(t, err)
}

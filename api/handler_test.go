package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/proggaming/authsync/flow"
	"github.com/proggaming/authsync/identity"
	"github.com/proggaming/authsync/profile"
	"github.com/proggaming/authsync/resolve"
	"github.com/proggaming/authsync/session"
)

type fakeClient struct {
	*identity.Broadcaster
	signInErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{Broadcaster: identity.NewBroadcaster()}
}

func (f *fakeClient) SignUpWithPassword(ctx context.Context, email, secret string) (*identity.Session, error) {
	sess := &identity.Session{
		ID:        "acct-1",
		Email:     email,
		Providers: []identity.Provider{identity.ProviderPassword},
	}
	f.Set(sess)
	return sess, nil
}

func (f *fakeClient) SignInWithPassword(ctx context.Context, email, secret string) (*identity.Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	sess := &identity.Session{
		ID:        "acct-1",
		Email:     email,
		Verified:  true,
		Providers: []identity.Provider{identity.ProviderPassword},
	}
	f.Set(sess)
	return sess, nil
}

func (f *fakeClient) SignInWithProvider(ctx context.Context, p identity.Provider) (*identity.Session, error) {
	return nil, nil
}
func (f *fakeClient) SignOut(ctx context.Context) error {
	f.Set(nil)
	return nil
}
func (f *fakeClient) SendVerificationEmail(ctx context.Context, returnURL string) error { return nil }
func (f *fakeClient) SendPasswordReset(ctx context.Context, email string) error         { return nil }

func setupAPI(t *testing.T, client identity.Client) *echo.Echo {
	t.Helper()

	store := profile.NewMemoryStore()
	ctrl := flow.NewController(client, store, nil)
	resolver := resolve.NewResolver(client, store, nil)
	tokens := session.NewTokenIssuer("test-secret", time.Hour)

	h := NewHandler(ctrl, client, resolver, tokens, nil)
	h.SetVerifyPrompt(flow.NewVerifyPrompt(flow.NewMemoryPromptStore(), nil, time.Hour))

	e := echo.New()
	g := e.Group("/api/v1")
	h.RegisterRoutes(g)
	return e
}

func request(t *testing.T, e *echo.Echo, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRegistrationAndWhoAmI(t *testing.T) {
	client := newFakeClient()
	e := setupAPI(t, client)

	rec := request(t, e, http.MethodPost, "/api/v1/registration", "", map[string]string{
		"email":    "a@x.com",
		"password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("registration failed with %d: %s", rec.Code, rec.Body.String())
	}

	var reg struct {
		Token string `json:"token"`
		User  struct {
			Email string `json:"email"`
			Level int    `json:"level"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reg); err != nil {
		t.Fatal(err)
	}
	if reg.Token == "" || reg.User.Email != "a@x.com" || reg.User.Level != 1 {
		t.Fatalf("unexpected registration response: %s", rec.Body.String())
	}

	rec = request(t, e, http.MethodGet, "/api/v1/whoami", reg.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("whoami failed with %d: %s", rec.Code, rec.Body.String())
	}

	var who struct {
		ShowVerifyPrompt bool `json:"show_verify_prompt"`
		User             struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &who); err != nil {
		t.Fatal(err)
	}
	if who.User.ID != "acct-1" {
		t.Fatalf("unexpected whoami response: %s", rec.Body.String())
	}
	if !who.ShowVerifyPrompt {
		t.Fatal("unverified password account should be prompted to verify")
	}
}

func TestLoginCredentialErrorSurfacesUserMessage(t *testing.T) {
	client := newFakeClient()
	client.signInErr = identity.NewError(identity.CodeWrongSecret, nil)
	e := setupAPI(t, client)

	rec := request(t, e, http.MethodPost, "/api/v1/login", "", map[string]string{
		"email":    "a@x.com",
		"password": "nope",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "Incorrect email or password." {
		t.Fatalf("unexpected message %q", resp.Status)
	}
}

func TestGateEndpoint(t *testing.T) {
	client := newFakeClient()
	e := setupAPI(t, client)

	// Signed out, asking about a protected screen.
	rec := request(t, e, http.MethodGet, "/api/v1/gate?location=/home", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("gate failed with %d", rec.Code)
	}
	var gate struct {
		RedirectTo   string `json:"redirect_to"`
		ForceSignOut bool   `json:"force_sign_out"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &gate); err != nil {
		t.Fatal(err)
	}
	if gate.RedirectTo != "/onboarding" || gate.ForceSignOut {
		t.Fatalf("unexpected directive: %s", rec.Body.String())
	}

	// Unverified password session on a protected screen.
	if _, err := client.SignUpWithPassword(context.Background(), "a@x.com", "secret123"); err != nil {
		t.Fatal(err)
	}
	rec = request(t, e, http.MethodGet, "/api/v1/gate?location=/home", "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &gate); err != nil {
		t.Fatal(err)
	}
	if gate.RedirectTo != "/onboarding" || !gate.ForceSignOut {
		t.Fatalf("unexpected directive for unverified session: %s", rec.Body.String())
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	client := newFakeClient()
	e := setupAPI(t, client)

	rec := request(t, e, http.MethodGet, "/api/v1/whoami", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}

	rec = request(t, e, http.MethodGet, "/api/v1/whoami", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", rec.Code)
	}
}

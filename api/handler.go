// Package api exposes the controller over HTTP for the presentation
// layer.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/proggaming/authsync/bounded"
	"github.com/proggaming/authsync/flow"
	"github.com/proggaming/authsync/identity"
	"github.com/proggaming/authsync/idp"
	"github.com/proggaming/authsync/nav"
	"github.com/proggaming/authsync/resolve"
	"github.com/proggaming/authsync/session"
)

type Handler struct {
	ctrl     *flow.Controller
	client   identity.Client
	resolver *resolve.Resolver
	tokens   *session.TokenIssuer
	prompt   *flow.VerifyPrompt
	oidc     map[string]*idp.OIDCProvider
	log      *zap.Logger
}

func NewHandler(ctrl *flow.Controller, client identity.Client, resolver *resolve.Resolver, tokens *session.TokenIssuer, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{ctrl: ctrl, client: client, resolver: resolver, tokens: tokens, log: log}
}

// SetVerifyPrompt enables the throttled verify-your-email prompt flag
// on whoami responses.
func (h *Handler) SetVerifyPrompt(p *flow.VerifyPrompt) { h.prompt = p }

// SetOIDCProviders enables the federated redirect endpoints.
func (h *Handler) SetOIDCProviders(providers map[string]*idp.OIDCProvider) { h.oidc = providers }

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/registration", h.HandleRegistration)
	g.POST("/login", h.HandleLogin)
	g.POST("/logout", h.HandleLogout)
	g.POST("/password-reset", h.HandlePasswordReset)

	g.GET("/auth/oidc/:provider", h.HandleOIDCAuth)
	g.GET("/auth/oidc/:provider/callback", h.HandleOIDCCallback)

	g.GET("/gate", h.HandleGate)

	protected := g.Group("")
	protected.Use(h.AuthMiddleware)
	protected.GET("/whoami", h.HandleWhoAmI)
	protected.POST("/verification-email", h.HandleVerificationEmail)
	protected.PUT("/profile", h.HandleUpdateProfile)
	protected.DELETE("/profile", h.HandleDeleteProfile)
}

func (h *Handler) HandleRegistration(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	user, err := h.ctrl.SignUpWithPassword(c.Request().Context(), body.Email, body.Password)
	if err != nil {
		return h.credentialError(c, err)
	}
	return h.userResponse(c, user)
}

func (h *Handler) HandleLogin(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	user, err := h.ctrl.SignInWithPassword(c.Request().Context(), body.Email, body.Password)
	if err != nil {
		return h.credentialError(c, err)
	}
	return h.userResponse(c, user)
}

func (h *Handler) HandleLogout(c echo.Context) error {
	if err := h.ctrl.SignOut(c.Request().Context()); err != nil {
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandlePasswordReset(c echo.Context) error {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	if err := h.ctrl.SendPasswordReset(c.Request().Context(), body.Email); err != nil {
		return h.credentialError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleVerificationEmail(c echo.Context) error {
	outcome, err := h.ctrl.SendVerificationEmail(c.Request().Context())
	if err != nil {
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}
	return c.JSON(http.StatusAccepted, map[string]any{
		"pending": outcome == bounded.OutcomePending,
	})
}

// HandleGate exposes the verification gate as a queryable endpoint so
// a web shell can ask where to route before rendering.
func (h *Handler) HandleGate(c echo.Context) error {
	location := nav.Location(c.QueryParam("location"))
	if location == "" {
		location = nav.LocationLanding
	}
	d := nav.Decide(h.client.Current(), location)

	resp := map[string]any{
		"force_sign_out": d.ForceSignOut,
	}
	if d.Redirect {
		resp["redirect_to"] = string(d.RedirectTo)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) HandleWhoAmI(c echo.Context) error {
	user, err := h.resolver.Resolve(c.Request().Context())
	if err != nil {
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}
	if user == nil {
		return h.Error(c, http.StatusUnauthorized, "Unauthorized", nil)
	}

	resp := map[string]any{"user": user}
	if h.prompt != nil && !user.Verified && !user.HasFederatedProvider() {
		resp["show_verify_prompt"] = h.prompt.ShouldShow(c.Request().Context(), user.ID)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) HandleUpdateProfile(c echo.Context) error {
	var body struct {
		Nickname  string `json:"nickname"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	if err := h.ctrl.UpdateProfile(c.Request().Context(), body.Nickname, body.AvatarURL); err != nil {
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleDeleteProfile(c echo.Context) error {
	if err := h.ctrl.DeleteProfile(c.Request().Context()); err != nil {
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleOIDCAuth(c echo.Context) error {
	provider, ok := h.oidc[c.Param("provider")]
	if !ok {
		return h.Error(c, http.StatusBadRequest, "Unknown provider", nil)
	}
	state := c.QueryParam("state")
	return c.Redirect(http.StatusFound, provider.AuthCodeURL(state))
}

// FederatedFinisher is the optional client capability the OIDC callback
// needs: turning a verified federated assertion into a session.
type FederatedFinisher interface {
	FinishFederated(ctx context.Context, provider identity.Provider, fid *idp.FederatedIdentity) (*identity.Session, error)
}

var _ FederatedFinisher = (*idp.LocalClient)(nil)

func (h *Handler) HandleOIDCCallback(c echo.Context) error {
	name := c.Param("provider")
	provider, ok := h.oidc[name]
	if !ok {
		return h.Error(c, http.StatusBadRequest, "Unknown provider", nil)
	}

	fid, err := provider.Callback(c.Request().Context(), c.QueryParam("code"))
	if err != nil {
		return h.Error(c, http.StatusUnauthorized, "Federated sign-in failed", err)
	}

	finisher, ok := h.client.(FederatedFinisher)
	if !ok {
		return h.Error(c, http.StatusInternalServerError, "Federated sign-in unsupported", nil)
	}
	sess, err := finisher.FinishFederated(c.Request().Context(), identity.Provider(name), fid)
	if err != nil {
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}

	user, err := h.resolver.Resolve(c.Request().Context())
	if err != nil || user == nil {
		user = resolve.FromSession(sess)
	}
	return h.userResponse(c, user)
}

// AuthMiddleware binds a request to the client's current session: the
// bearer token must parse and name the signed-in account. The client
// holds one session per process, mirroring a device-local controller;
// serving concurrent users needs a per-request session lookup instead.
func (h *Handler) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Request().Header.Get("Authorization")
		if token == "" {
			return h.Error(c, http.StatusUnauthorized, "Authorization header required", nil)
		}

		accountID, err := h.tokens.Parse(token)
		if err != nil {
			return h.Error(c, http.StatusUnauthorized, "Unauthorized", err)
		}
		cur := h.client.Current()
		if cur == nil || cur.ID != accountID {
			return h.Error(c, http.StatusUnauthorized, "Unauthorized", nil)
		}
		return next(c)
	}
}

func (h *Handler) userResponse(c echo.Context, user *resolve.User) error {
	token, err := h.tokens.Issue(&identity.Session{
		ID:       user.ID,
		Email:    user.Email,
		Verified: user.Verified,
	})
	if err != nil {
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"user":  user,
		"token": token,
	})
}

// credentialError maps the provider error taxonomy to HTTP statuses and
// user-facing text.
func (h *Handler) credentialError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch identity.CodeOf(err) {
	case identity.CodeUserNotFound, identity.CodeWrongSecret, identity.CodePopupClosed:
		status = http.StatusUnauthorized
	case identity.CodeEmailInUse:
		status = http.StatusConflict
	case identity.CodeWeakSecret, identity.CodeInvalidEmail:
		status = http.StatusBadRequest
	case identity.CodeRateLimited:
		status = http.StatusTooManyRequests
	}
	return h.Error(c, status, identity.UserMessage(err), err)
}

func (h *Handler) Error(c echo.Context, code int, message string, err error) error {
	resp := map[string]any{
		"status": message,
		"code":   code,
	}
	if err != nil {
		h.log.Debug("request failed", zap.Int("status", code), zap.Error(err))
		resp["error"] = err.Error()
	}
	return c.JSON(code, resp)
}

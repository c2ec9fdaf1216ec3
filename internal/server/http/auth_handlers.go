package httpserver

import (
	"net/http"
	"strings"

	"github.com/and161185/authgate/internal/convert"
	"github.com/and161185/authgate/internal/errs"
	"github.com/and161185/authgate/internal/model"
	"github.com/and161185/authgate/internal/service"
)

// Sign-in actions.
const (
	actionRegister    = "register"
	actionSignIn      = "signin"
	actionOAuthSignIn = "oauth-signin"
)

type sessionBody struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    model.Expiry `json:"expires_at"`
	User         *struct {
		ID string `json:"id"`
	} `json:"user"`
}

type sessionRequest struct {
	Session *sessionBody `json:"session"`
}

type signInRequest struct {
	Action         string       `json:"action"`
	Username       string       `json:"username"`
	Email          string       `json:"email"`
	Password       string       `json:"password"`
	FirstName      string       `json:"firstname"`
	LastName       string       `json:"lastname"`
	SupabaseUserID string       `json:"supabaseUserId"`
	Session        *sessionBody `json:"session"`
}

// externalID prefers the provider session subject over supabaseUserId.
func (req signInRequest) externalID() string {
	if req.Session != nil && req.Session.User != nil && req.Session.User.ID != "" {
		return req.Session.User.ID
	}
	return strings.TrimSpace(req.SupabaseUserID)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	var (
		res *service.AccountResult
		err error
	)
	switch strings.TrimSpace(req.Action) {
	case actionRegister:
		res, err = s.auth.SignUp(r.Context(), service.SignUpInput{
			ExternalID: req.externalID(),
			Username:   req.Username,
			Email:      req.Email,
			Password:   req.Password,
			FirstName:  req.FirstName,
			LastName:   req.LastName,
		})
	case actionSignIn:
		res, err = s.auth.SignIn(r.Context(), service.SignInInput{
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
		}, requestMeta(r))
	case actionOAuthSignIn:
		res, err = s.auth.OAuthSignIn(r.Context(), service.OAuthInput{
			ExternalID: req.externalID(),
			Username:   req.Username,
			Email:      req.Email,
		})
	default:
		err = errs.BadRequest(service.CodeInvalidAction, "action must be one of register, signin, oauth-signin")
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	ok(w, status, res.Message, convert.ToAccount(res))
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.auth.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, res.Message, convert.ToForgot(res))
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token           string `json:"token"`
		NewPassword     string `json:"newPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.auth.ResetPassword(r.Context(), service.ResetInput{
		Token:           req.Token,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	}, requestMeta(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, res.Message, convert.ToReset(res))
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Token    string `json:"token"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.auth.ResendVerification(r.Context(), service.ResendInput{
		Email:    req.Email,
		Username: req.Username,
		Token:    req.Token,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, res.Message, convert.ToResend(res))
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.auth.VerifyEmail(r.Context(), req.Token, requestMeta(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, res.Message, convert.ToVerified(res))
}

func (s *Server) handleSyncToken(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var in service.SessionInput
	if req.Session != nil {
		in = service.SessionInput{
			AccessToken: strings.TrimSpace(req.Session.AccessToken),
			Refresh:     model.RefreshMaterial{Token: req.Session.RefreshToken, ExpiresAt: req.Session.ExpiresAt},
		}
	}
	if err := s.auth.SyncSessionToken(r.Context(), in); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Refresh token synced successfully", nil)
}

func (s *Server) handleCheckLogin(w http.ResponseWriter, r *http.Request) {
	sess, found := SessionFromCtx(r.Context())
	if !found {
		s.fail(w, r, errs.Unauthorized(service.CodeMissingToken, "Authorization token required"))
		return
	}
	ok(w, http.StatusOK, "User authenticated successfully", convert.ToSession(sess))
}

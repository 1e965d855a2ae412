package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"microblog/internal/domain"
	"microblog/internal/form"
	"microblog/internal/mail"
	"microblog/internal/service"
)

func (h *Handler) loginPage(c *gin.Context) {
	next, _ := safeNext(c.Query("next"))
	h.render(c, http.StatusOK, "login.html", gin.H{
		"Title": "Sign In",
		"Form":  form.LoginForm{},
		"Next":  next,
	})
}

func (h *Handler) login(c *gin.Context) {
	var f form.LoginForm
	if err := c.ShouldBind(&f); err != nil {
		f = form.LoginForm{}
	}
	next, hasNext := safeNext(c.Query("next"))

	if errs := f.Validate(); !errs.Valid() {
		h.render(c, http.StatusOK, "login.html", gin.H{
			"Title":  "Sign In",
			"Form":   f,
			"Errors": errs,
			"Next":   next,
		})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), f.Username, f.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			flash(c, "Invalid username or password")
			loginURL := "/login"
			if hasNext {
				loginURL += "?next=" + url.QueryEscape(next)
			}
			redirect(c, loginURL)
			return
		}
		h.internalError(c, err)
		return
	}

	if err := h.startSession(c, user, f.RememberMe); err != nil {
		h.internalError(c, err)
		return
	}
	h.logger.WithField("user_id", user.ID).Info("user logged in")

	if !hasNext {
		next = "/index"
	}
	redirect(c, next)
}

func (h *Handler) logout(c *gin.Context) {
	endSession(c)
	redirect(c, "/index")
}

func (h *Handler) registerPage(c *gin.Context) {
	h.render(c, http.StatusOK, "register.html", gin.H{
		"Title": "Register",
		"Form":  form.RegistrationForm{},
	})
}

func (h *Handler) register(c *gin.Context) {
	var f form.RegistrationForm
	if err := c.ShouldBind(&f); err != nil {
		f = form.RegistrationForm{}
	}
	ctx := c.Request.Context()

	errs, err := f.Validate(ctx, h.users)
	if err != nil {
		h.internalError(c, err)
		return
	}
	if errs.Valid() {
		user, err := h.users.Register(ctx, f.Username, f.Email, f.Password)
		switch {
		case err == nil:
			h.logger.WithField("user_id", user.ID).Info("user registered")
			flash(c, "Congratulations, you are now a registered user!")
			redirect(c, "/login")
			return
		case errors.Is(err, service.ErrUsernameTaken):
			errs.Add("username", "Username is already taken")
		case errors.Is(err, service.ErrEmailTaken):
			errs.Add("email", "Email is already in use")
		default:
			h.internalError(c, err)
			return
		}
	}

	f.Password, f.Password2 = "", ""
	h.render(c, http.StatusOK, "register.html", gin.H{
		"Title":  "Register",
		"Form":   f,
		"Errors": errs,
	})
}

func (h *Handler) resetRequestPage(c *gin.Context) {
	h.render(c, http.StatusOK, "reset_password_request.html", gin.H{
		"Title": "Reset Password",
		"Form":  form.ResetPasswordRequestForm{},
	})
}

func (h *Handler) resetRequest(c *gin.Context) {
	var f form.ResetPasswordRequestForm
	if err := c.ShouldBind(&f); err != nil {
		f = form.ResetPasswordRequestForm{}
	}
	if errs := f.Validate(); !errs.Valid() {
		h.render(c, http.StatusOK, "reset_password_request.html", gin.H{
			"Title":  "Reset Password",
			"Form":   f,
			"Errors": errs,
		})
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetByEmail(ctx, f.Email)
	switch {
	case err == nil:
		if err := h.sendPasswordResetEmail(c, user); err != nil {
			h.internalError(c, err)
			return
		}
	case !isNotFound(err):
		h.internalError(c, err)
		return
	}

	// same answer whether or not the address is registered
	flash(c, "Check your email for the instructions to reset your password")
	redirect(c, "/login")
}

func (h *Handler) sendPasswordResetEmail(c *gin.Context, user *domain.User) error {
	token, err := h.users.IssueResetToken(c.Request.Context(), user)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/reset_password/%s", h.externalBaseURL(c), token)

	msg, err := mail.PasswordReset(h.mailSender, user.Email, user.Username, link)
	if err != nil {
		return err
	}
	if h.mailer == nil {
		return errors.New("mail dispatcher not configured")
	}
	if err := h.mailer.Send(msg); err != nil {
		h.logger.WithField("user_id", user.ID).Warnf("queue reset email: %v", err)
	}
	return nil
}

func (h *Handler) resetPasswordPage(c *gin.Context) {
	token := c.Param("token")
	if _, err := h.users.VerifyResetToken(c.Request.Context(), token); err != nil {
		h.rejectResetToken(c, err)
		return
	}
	h.render(c, http.StatusOK, "reset_password.html", gin.H{
		"Title": "Reset Password",
		"Form":  form.ResetPasswordForm{},
		"Token": token,
	})
}

func (h *Handler) resetPassword(c *gin.Context) {
	token := c.Param("token")
	ctx := c.Request.Context()
	if _, err := h.users.VerifyResetToken(ctx, token); err != nil {
		h.rejectResetToken(c, err)
		return
	}

	var f form.ResetPasswordForm
	if err := c.ShouldBind(&f); err != nil {
		f = form.ResetPasswordForm{}
	}
	if errs := f.Validate(); !errs.Valid() {
		h.render(c, http.StatusOK, "reset_password.html", gin.H{
			"Title":  "Reset Password",
			"Form":   form.ResetPasswordForm{},
			"Errors": errs,
			"Token":  token,
		})
		return
	}

	user, err := h.users.ResetPassword(ctx, token, f.Password)
	if err != nil {
		h.rejectResetToken(c, err)
		return
	}
	h.logger.WithField("user_id", user.ID).Info("password reset")
	flash(c, "Your password has been reset.")
	redirect(c, "/login")
}

func (h *Handler) rejectResetToken(c *gin.Context, err error) {
	if errors.Is(err, service.ErrInvalidToken) {
		redirect(c, "/index")
		return
	}
	h.internalError(c, err)
}

func (h *Handler) externalBaseURL(c *gin.Context) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

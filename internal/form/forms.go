package form

import (
	"context"
	"errors"
	"strings"

	"microblog/internal/domain"
	"microblog/internal/service"
)

// UserLookup is the part of the credential store uniqueness checks need.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type LoginForm struct {
	Username   string `form:"username"`
	Password   string `form:"password"`
	RememberMe bool   `form:"remember_me"`
}

func (f *LoginForm) Validate() Errors {
	errs := Errors{}
	runFieldValFns(errs, "username", f.Username, required)
	runFieldValFns(errs, "password", f.Password, required)
	return errs
}

type RegistrationForm struct {
	Username  string `form:"username"`
	Email     string `form:"email"`
	Password  string `form:"password"`
	Password2 string `form:"password2"`
}

// Validate checks field rules and then availability of username and email.
func (f *RegistrationForm) Validate(ctx context.Context, users UserLookup) (Errors, error) {
	errs := Errors{}
	runFieldValFns(errs, "username", f.Username, required, maxLen(domain.MaxUsernameLen))
	runFieldValFns(errs, "email", f.Email, required, email, maxLen(domain.MaxEmailLen))
	runFieldValFns(errs, "password", f.Password, required)
	runFieldValFns(errs, "password2", f.Password2, required, equalTo(f.Password, "password"))

	if errs.Get("username") == "" {
		taken, err := exists(users.GetByUsername(ctx, strings.TrimSpace(f.Username)))
		if err != nil {
			return nil, err
		}
		if taken {
			errs.Add("username", "Username is already taken")
		}
	}
	if errs.Get("email") == "" {
		taken, err := exists(users.GetByEmail(ctx, f.Email))
		if err != nil {
			return nil, err
		}
		if taken {
			errs.Add("email", "Email is already in use")
		}
	}
	return errs, nil
}

type PostForm struct {
	Post string `form:"post"`
}

func (f *PostForm) Validate() Errors {
	errs := Errors{}
	runFieldValFns(errs, "post", f.Post, required, length(1, domain.MaxPostLen))
	return errs
}

type EditProfileForm struct {
	Username string `form:"username"`
	AboutMe  string `form:"about_me"`
}

// Validate allows the current username to be kept unchanged.
func (f *EditProfileForm) Validate(ctx context.Context, users UserLookup, originalUsername string) (Errors, error) {
	errs := Errors{}
	runFieldValFns(errs, "username", f.Username, required, maxLen(domain.MaxUsernameLen))
	runFieldValFns(errs, "about_me", f.AboutMe, maxLen(domain.MaxAboutMeLen))

	username := strings.TrimSpace(f.Username)
	if errs.Get("username") == "" && username != originalUsername {
		taken, err := exists(users.GetByUsername(ctx, username))
		if err != nil {
			return nil, err
		}
		if taken {
			errs.Add("username", "Username is already taken")
		}
	}
	return errs, nil
}

type ResetPasswordRequestForm struct {
	Email string `form:"email"`
}

func (f *ResetPasswordRequestForm) Validate() Errors {
	errs := Errors{}
	runFieldValFns(errs, "email", f.Email, required, email)
	return errs
}

type ResetPasswordForm struct {
	Password  string `form:"password"`
	Password2 string `form:"password2"`
}

func (f *ResetPasswordForm) Validate() Errors {
	errs := Errors{}
	runFieldValFns(errs, "password", f.Password, required)
	runFieldValFns(errs, "password2", f.Password2, required, equalTo(f.Password, "password"))
	return errs
}

func exists(_ *domain.User, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, service.ErrUserNotFound):
		return false, nil
	default:
		return false, err
	}
}

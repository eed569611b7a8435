package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type signUpInput struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type logInInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type updateProfileInput struct {
	FullName   *string `json:"fullName" validate:"omitempty,min=1"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Password   *string `json:"password" validate:"omitempty,min=6"`
	ProfilePic *string `json:"profilePic"`
}

func identityOf(u *store.User) protocol.Identity {
	return protocol.Identity{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		CreatedAt:  time.UnixMilli(u.CreatedAt).UTC(),
	}
}

// validationError turns validator failures into the message shown to users.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return badRequest("Invalid request")
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return badRequest("All fields are required")
	case "email":
		return badRequest("Invalid email format")
	case "min":
		if fe.Field() == "Password" {
			return badRequest("Password must be at least 6 characters")
		}
		return badRequest(fe.Field() + " cannot be empty")
	}
	return badRequest("Invalid " + strings.ToLower(fe.Field()))
}

func (s *Server) setSession(w http.ResponseWriter, userID string) error {
	token, err := s.tokens.Issue(userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     protocol.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.tokens.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   s.production,
	})
	return nil
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var in signUpInput
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		s.writeError(w, r, validationError(err))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	u := &store.User{FullName: in.FullName, Email: in.Email, PasswordHash: string(hash)}
	if err := s.db.CreateUser(u); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			err = badRequest("Email already exists")
		}
		s.writeError(w, r, err)
		return
	}
	if err := s.setSession(w, u.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("user signed up", zap.String("user", u.ID))
	writeJSON(w, http.StatusCreated, identityOf(u))
}

func (s *Server) handleLogIn(w http.ResponseWriter, r *http.Request) {
	var in logInInput
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		s.writeError(w, r, validationError(err))
		return
	}

	u, err := s.db.UserByEmail(in.Email)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, r, badRequest("Invalid credentials"))
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		s.writeError(w, r, badRequest("Invalid credentials"))
		return
	}
	if err := s.setSession(w, u.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("user logged in", zap.String("user", u.ID))
	writeJSON(w, http.StatusOK, identityOf(u))
}

func (s *Server) handleLogOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     protocol.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   s.production,
	})
	writeJSON(w, http.StatusOK, protocol.ErrorBody{Message: "Logged out successfully"})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, identityOf(userFrom(r.Context())))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in updateProfileInput
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, f := range []*string{in.FullName, in.Email, in.ProfilePic} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
	if in.FullName == nil && in.Email == nil && in.Password == nil && in.ProfilePic == nil {
		s.writeError(w, r, badRequest("Nothing to update"))
		return
	}
	if err := s.validate.Struct(in); err != nil {
		s.writeError(w, r, validationError(err))
		return
	}

	upd := store.UserUpdate{FullName: in.FullName, Email: in.Email, ProfilePic: in.ProfilePic}
	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.hashCost)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		h := string(hash)
		upd.PasswordHash = &h
	}

	u, err := s.db.UpdateUser(userFrom(r.Context()).ID, upd)
	if errors.Is(err, store.ErrEmailTaken) {
		err = badRequest("Email already exists")
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("profile updated", zap.String("user", u.ID))
	writeJSON(w, http.StatusOK, identityOf(u))
}

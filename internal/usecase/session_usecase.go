package usecase

import (
	"context"
	"errors"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/repository"
	"storefront/internal/validator"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// accesstokenの有効期限
const accessTokenTTL = 15 * time.Minute

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AccessTokenDTO struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenVersion int    `json:"token_version"`
}

type LoginResponse struct {
	User  model.SessionUser `json:"user"`
	Token AccessTokenDTO    `json:"token"`
}

// SessionUsecase はログインとJWTからのセッション復元を扱う。
type SessionUsecase struct {
	cfg   config.Config
	users repository.UserRepository
	now   func() time.Time
}

func NewSessionUsecase(cfg config.Config, users repository.UserRepository) *SessionUsecase {
	return &SessionUsecase{cfg: cfg, users: users, now: time.Now}
}

func (u *SessionUsecase) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := validator.NormalizeEmail(req.Email)
	if err := validator.ValidateLogin(email, req.Password); err != nil {
		return nil, err
	}

	user, err := u.users.FindByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, ErrUnauthorized
	}

	//停止ユーザーはログイン不可
	if !user.IsActive {
		return nil, ErrForbidden
	}

	//パスワード照合（bcrypt）
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrUnauthorized
	}

	//last_login更新
	now := u.now()
	user.LastLoginAt = &now
	_ = u.users.Update(ctx, user)

	token, expiresIn, err := u.issueAccessToken(user, now)
	if err != nil {
		return nil, ErrInternal
	}

	return &LoginResponse{
		User: toSessionUser(user),
		Token: AccessTokenDTO{
			AccessToken:  token,
			ExpiresIn:    expiresIn,
			TokenVersion: user.TokenVersion,
		},
	}, nil
}

// Session はJWTの中身からセッションを組み立てる。
// token_versionがDBと違えば強制ログアウト扱い。
func (u *SessionUsecase) Session(ctx context.Context, userID int64, tokenVersion int) (model.Session, error) {
	if userID <= 0 {
		return model.AnonymousSession(), ErrUnauthorized
	}

	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) || user == nil {
		return model.AnonymousSession(), ErrUnauthorized
	}
	if err != nil {
		return model.AnonymousSession(), ErrInternal
	}
	if !user.IsActive {
		return model.AnonymousSession(), ErrForbidden
	}
	if user.TokenVersion != tokenVersion {
		return model.AnonymousSession(), ErrUnauthorized
	}

	return model.Session{Authenticated: true, User: toSessionUser(user)}, nil
}

// jwt発行
func (u *SessionUsecase) issueAccessToken(user *model.User, now time.Time) (string, int, error) {
	exp := now.Add(accessTokenTTL)

	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"tv":   user.TokenVersion,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := t.SignedString([]byte(u.cfg.JWTSecret))
	if err != nil {
		return "", 0, err
	}

	return signed, int(accessTokenTTL.Seconds()), nil
}

func toSessionUser(u *model.User) model.SessionUser {
	return model.SessionUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Phone: u.Phone,
	}
}

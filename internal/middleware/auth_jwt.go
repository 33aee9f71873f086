package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey       = "user_id"       // int64
	CtxUserRoleKey     = "user_role"     // string
	CtxTokenVersionKey = "token_version" // int
	CtxSessionKey      = "session"       // model.Session
)

// bearerAuth用のJWT検証ミドルウェア。
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := parseBearer(cfg, c.Request().Header.Get("Authorization"))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			claims.store(c)
			return next(c)
		}
	}
}

// OptionalAuth はトークンが無い・不正でも通す（匿名扱い）。
// チェックアウト開始のように未ログインを業務側で判断したいルート用。
func OptionalAuth(cfg config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if claims, err := parseBearer(cfg, c.Request().Header.Get("Authorization")); err == nil {
				claims.store(c)
			}
			return next(c)
		}
	}
}

type tokenClaims struct {
	userID int64
	role   string
	tv     int
}

func (t tokenClaims) store(c echo.Context) {
	c.Set(CtxUserIDKey, t.userID)
	c.Set(CtxUserRoleKey, t.role)
	c.Set(CtxTokenVersionKey, t.tv)
}

var errInvalidToken = errors.New("invalid token")

func parseBearer(cfg config.Config, authz string) (tokenClaims, error) {
	if authz == "" {
		return tokenClaims{}, errInvalidToken
	}

	//Bearer形式か確認してtokenを抜く
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return tokenClaims{}, errInvalidToken
	}
	rawToken := strings.TrimSpace(parts[1])
	if rawToken == "" {
		return tokenClaims{}, errInvalidToken
	}

	//JWTをパースして検証する
	token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || token == nil || !token.Valid {
		return tokenClaims{}, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return tokenClaims{}, errInvalidToken
	}

	userID, err := parseUserID(claims["sub"])
	if err != nil || userID <= 0 {
		return tokenClaims{}, errInvalidToken
	}

	//roleを取り出す（USER/ADMIN）
	role, err := parseString(claims["role"])
	if err != nil || role == "" {
		return tokenClaims{}, errInvalidToken
	}

	tv, err := parseInt(claims["tv"])
	if err != nil || tv < 0 {
		return tokenClaims{}, errInvalidToken
	}

	return tokenClaims{userID: userID, role: role, tv: tv}, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

// user_idをint64に変換する
func parseUserID(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errors.New("invalid sub")
	}
}

func parseString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.New("invalid string")
	}
	return s, nil
}

func parseInt(v interface{}) (int, error) {
	switch t := v.(type) {
	case float64:
		return int(t), nil
	case int:
		return t, nil
	case string:
		i64, err := strconv.ParseInt(t, 10, 32)
		if err != nil {
			return 0, err
		}
		return int(i64), nil
	default:
		return 0, errors.New("invalid int")
	}
}

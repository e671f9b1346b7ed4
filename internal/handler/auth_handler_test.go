package handler

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/kita-live/kita-api/internal/middleware"
	"github.com/kita-live/kita-api/internal/utils"
)

const testJWTSecret = "test-secret"

func newAuthTestApp() *fiber.App {
	app := fiber.New()
	NewAuthHandler(testJWTSecret, testValidator(), testLogger()).Register(app.Group("/auth"))
	return app
}

func TestAnonymousSessionMintsVerifiableToken(t *testing.T) {
	app := newAuthTestApp()

	resp := performRequest(t, app, fiber.MethodPost, "/auth/anonymous", map[string]string{"name": "Dana"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	decoded := decodeResponse(t, resp)
	require.True(t, decoded.Success)

	uid, _ := dataField(t, decoded, "uid").(string)
	tokenString, _ := dataField(t, decoded, "token").(string)
	expiresIn, _ := dataField(t, decoded, "expires_in").(float64)
	require.NotEmpty(t, uid)
	require.NotEmpty(t, tokenString)
	require.Equal(t, float64(24*60*60), expiresIn)

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	require.Equal(t, uid, claims["sub"])
	require.Equal(t, "Dana", claims["name"])
}

func TestAnonymousSessionBodyIsOptional(t *testing.T) {
	app := newAuthTestApp()

	resp := performRequest(t, app, fiber.MethodPost, "/auth/anonymous", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	decoded := decodeResponse(t, resp)
	tokenString, _ := dataField(t, decoded, "token").(string)

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)

	claims := token.Claims.(jwt.MapClaims)
	_, hasName := claims["name"]
	require.False(t, hasName, "a nameless session carries no name claim")
}

func TestMintedTokenPassesJWTMiddleware(t *testing.T) {
	app := newAuthTestApp()

	resp := performRequest(t, app, fiber.MethodPost, "/auth/anonymous", map[string]string{"name": "Dana"})
	decoded := decodeResponse(t, resp)
	tokenString, _ := dataField(t, decoded, "token").(string)
	mintedUID, _ := dataField(t, decoded, "uid").(string)

	app.Get("/whoami", middleware.JWTProtected(testJWTSecret), func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "ok", fiber.Map{
			"uid":  c.Locals("uid"),
			"name": c.Locals("user_name"),
		})
	})

	anonymous := performRequest(t, app, fiber.MethodGet, "/whoami", nil)
	require.Equal(t, http.StatusUnauthorized, anonymous.StatusCode, "missing bearer token is rejected")

	authorized := performAuthorizedRequest(t, app, fiber.MethodGet, "/whoami", tokenString, nil)
	require.Equal(t, http.StatusOK, authorized.StatusCode)
	body := decodeResponse(t, authorized)
	require.Equal(t, mintedUID, dataField(t, body, "uid"))
	require.Equal(t, "Dana", dataField(t, body, "name"))
}

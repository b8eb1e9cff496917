package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

type AuthHandler struct {
	authKey []byte
	passKey string
}

func NewAuthHandler(authKey, passKey string) *AuthHandler {
	return &AuthHandler{
		authKey: []byte(authKey),
		passKey: passKey,
	}
}

func (h *AuthHandler) InitRoute(app *fiber.App) {

	app.Post("/auth", h.Login)
	app.Use(h.AuthMiddleware)
}

type Claims struct {
	jwt.RegisteredClaims
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {

	if len(h.authKey) == 0 || h.passKey == "" {
		return fiber.NewError(fiber.StatusForbidden, "login is disabled")
	}

	var req LoginReq
	err := c.BodyParser(&req)
	if err != nil {
		return err
	}

	err = bcrypt.CompareHashAndPassword([]byte(h.passKey), []byte(req.Passkey))
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "wrong passkey")
	}

	expirationTime := time.Now().Add(tokenTTL)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   "binkeeper",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(h.authKey)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(JWTResponse{
		Token:  tokenString,
		Expiry: expirationTime.Unix(),
	})
}

func (h *AuthHandler) AuthMiddleware(c *fiber.Ctx) error {

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "authorization header missing")
	}

	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization format")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenParts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return h.authKey, nil
	})
	if err != nil || !token.Valid {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}

	return c.Next()
}

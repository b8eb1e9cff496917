package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog/log"
)

func SetupMiddleware(router fiber.Router) {

	router.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST",
	}))
	router.Use(errorHandle)
	router.Use(logRequest)

}

func errorHandle(c *fiber.Ctx) error {

	err := c.Next()
	if err != nil {
		code := fiber.StatusBadRequest
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		log.Error().Err(err).Int("status", code).Msg("Error in middleware")
		return c.Status(code).SendString(err.Error())
	}
	return nil
}

func logRequest(c *fiber.Ctx) error {
	log.Info().Str("method", c.Method()).Str("endpoint", c.Path()).Msg("Request endpoint")
	return c.Next()
}

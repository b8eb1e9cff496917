package app

import (
	"context"
	"fmt"

	"binkeeper/app/handler"
	"binkeeper/app/middleware"
	"binkeeper/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port    int
	AuthKey string // jwt signing key
	PassKey string // bcrypt hash of the login passkey
}

func New(conf Config, keeper handler.KeeperService, journal handler.ActivityRetriever) *fiber.App {

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	middleware.SetupMiddleware(app)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// routes registered after the auth handler require a token
	handler.NewAuthHandler(conf.AuthKey, conf.PassKey).InitRoute(app)
	handler.NewPositionHandler(keeper, journal).InitRoute(app)

	return app
}

// Run serves until ctx is done.
func Run(ctx context.Context, conf Config, keeper handler.KeeperService, journal handler.ActivityRetriever) error {
	app := New(conf, keeper, journal)

	go func() {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("failed to shut down status api")
		}
	}()

	log.Info().Int("port", conf.Port).Msg("status api listening")
	return app.Listen(fmt.Sprintf(":%d", conf.Port))
}

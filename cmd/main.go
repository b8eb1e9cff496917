package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"binkeeper"
	"binkeeper/app"
	"binkeeper/blockchain/algebra"
	"binkeeper/blockchain/chain"
	"binkeeper/blockchain/pkg/txlistener"
	"binkeeper/blockchain/swapapi"
	"binkeeper/bot"
	"binkeeper/config"
	"binkeeper/internal/balance"
	"binkeeper/internal/db"
	"binkeeper/internal/logger"
	"binkeeper/internal/retry"

	"github.com/rs/zerolog/log"
)

func main() {

	conf, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if _, err := conf.LogLevel(); err != nil {
		log.Warn().Err(err).Msg("unknown log level, using info")
	}
	logger.Init(conf.LoggerConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch := make(chan string, 64)

	// telegram is optional. Without it the decrypt key must come from env.
	var teleBot *bot.TeleBot
	var keyPasser config.KeyPasser
	if botConf, err := conf.BotConfig(); err != nil {
		log.Warn().Err(err).Msg("running without telegram")
	} else {
		teleBot, err = bot.NewTeleBot(botConf)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start telegram bot")
		}
		keyPasser = teleBot
	}

	privateKey, err := conf.PrivateKey(keyPasser)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load wallet key")
	}

	client, err := chain.Dial(ctx, conf.Chain.RPC, privateKey, []txlistener.Option{
		txlistener.WithPollInterval(time.Second),
		txlistener.WithTimeout(2 * time.Minute),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to dial rpc")
	}

	// chain must answer before anything is built on it
	if _, err := retry.Value(ctx, retry.NewExecutor(nil), "rpc_probe", conf.Retry.Startup, client.LatestBlockhash); err != nil {
		log.Fatal().Err(err).Msg("rpc is not reachable")
	}

	storage := db.NewNoopStorage()
	if conf.DB.DSN != "" || conf.Redis.Addr != "" {
		storage, err = db.NewStorage(conf.DB.DSN, conf.RedisConfig())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open storage")
		}
	}
	defer storage.Close()

	pool, err := algebra.New(ctx, client, conf.PoolConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load pool")
	}

	kc := conf.KeeperConfig()
	kc.Balances = balance.NewTracker(client)
	kc.Pool = pool
	kc.Swap = swapapi.New(conf.SwapConfig(client.Address()), client)
	kc.Chain = client
	kc.Storage = storage
	kc.Channel = ch
	keeper := binkeeper.NewKeeper(kc)

	summary, err := keeper.StartSummary(conf.Report.SummaryCron)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to schedule summary")
	}
	defer summary.Stop()

	go func() {
		if err := app.Run(ctx, app.Config{
			Port:    conf.App.Port,
			AuthKey: conf.App.JwtKey,
			PassKey: conf.App.Passkey,
		}, keeper, storage); err != nil {
			log.Error().Err(err).Msg("status api stopped")
		}
	}()

	if teleBot != nil {
		go teleBot.Run(ch, keeper)
	} else {
		go func() {
			for msg := range ch {
				log.Info().Str("report", msg).Msg("keeper report")
			}
		}()
	}

	log.Info().Str("wallet", client.Address().Hex()).Str("pool", conf.Pool.Address).Msg("binkeeper starting")

	if err := keeper.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("keeper stopped")
	}
	log.Info().Msg("binkeeper stopped")
}

package config

import (
	"crypto/ecdsa"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"binkeeper"
	"binkeeper/blockchain/algebra"
	"binkeeper/blockchain/chain"
	"binkeeper/blockchain/swapapi"
	"binkeeper/bot"
	"binkeeper/internal/db"
	"binkeeper/internal/logger"
	"binkeeper/internal/retry"
	"binkeeper/internal/util"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configByte []byte

// EnvConfigPath points to a yaml file replacing the embedded defaults.
const EnvConfigPath = "BINKEEPER_CONFIG"

const maxKeyAttempts = 3

type Config struct {
	Log struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
		File   string `yaml:"file"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Chain struct {
		RPC     string `yaml:"rpc" validate:"required,url"`
		ChainID int64  `yaml:"chainId" validate:"gt=0"`
	} `yaml:"chain"`

	Wallet struct {
		Key           string `yaml:"key" validate:"omitempty,hexadecimal"` // AES-CFB ciphertext of the private key
		DecryptKeyEnv string `yaml:"decryptKeyEnv"`
	} `yaml:"wallet"`

	Pool struct {
		Address     string `yaml:"address" validate:"required,eth_addr"`
		NPM         string `yaml:"npm" validate:"required,eth_addr"`
		Deployer    string `yaml:"deployer" validate:"omitempty,eth_addr"`
		TokenA      string `yaml:"tokenA" validate:"required,eth_addr,nefield=TokenB"`
		TokenB      string `yaml:"tokenB" validate:"required,eth_addr"`
		HalfWidth   int64  `yaml:"halfWidth" validate:"gte=0"`
		SlippageBps uint32 `yaml:"slippageBps" validate:"lte=10000"`
	} `yaml:"pool"`

	Swap struct {
		BaseURL     string `yaml:"baseUrl" validate:"required,url"`
		SlippageBps uint32 `yaml:"slippageBps" validate:"lte=10000"`
	} `yaml:"swap"`

	Keeper struct {
		MinGas       string        `yaml:"minGas" validate:"required,numeric"`
		PollInterval time.Duration `yaml:"pollInterval" validate:"gt=0"`
		RemoveBps    uint32        `yaml:"removeBps" validate:"gte=1,lte=10000"`
	} `yaml:"keeper"`

	Retry struct {
		Swap    retry.Policy `yaml:"swap"`
		Create  retry.Policy `yaml:"create"`
		Remove  retry.Policy `yaml:"remove"`
		Query   retry.Policy `yaml:"query"`
		Startup retry.Policy `yaml:"startup"`
	} `yaml:"retry"`

	App struct {
		Port    int    `yaml:"port" validate:"gt=0,lte=65535"`
		JwtKey  string `yaml:"jwtKey"`
		Passkey string `yaml:"passkey"` // bcrypt hash
	} `yaml:"app"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chatId"`
	} `yaml:"telegram"`

	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Report struct {
		SummaryCron string `yaml:"summaryCron"`
	} `yaml:"report"`
}

// NewConfig loads .env, then the yaml named by BINKEEPER_CONFIG or the embedded default,
// applies env overrides and validates the result.
func NewConfig() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	data := configByte
	if path := os.Getenv(EnvConfigPath); path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	var conf Config
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, err
	}

	conf.overrideFromEnv()

	if err := validator.New().Struct(&conf); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &conf, nil
}

func (c *Config) overrideFromEnv() {
	for env, target := range map[string]*string{
		"BINKEEPER_RPC":            &c.Chain.RPC,
		"BINKEEPER_WALLET_KEY":     &c.Wallet.Key,
		"BINKEEPER_DSN":            &c.DB.DSN,
		"BINKEEPER_REDIS_ADDR":     &c.Redis.Addr,
		"BINKEEPER_REDIS_PASSWORD": &c.Redis.Password,
		"BINKEEPER_TELEGRAM_TOKEN": &c.Telegram.Token,
		"BINKEEPER_JWT_KEY":        &c.App.JwtKey,
		"BINKEEPER_PASSKEY":        &c.App.Passkey,
	} {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*target = v
		}
	}
}

func (c Config) LogLevel() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel, err
	}
	return level, nil
}

func (c Config) LoggerConfig() logger.Config {
	level, _ := c.LogLevel()
	return logger.Config{
		Level:  level,
		File:   c.Log.File,
		Pretty: c.Log.Pretty,
	}
}

// 복호화 키 전달
type KeyPasser interface {
	InitKey(err error) string
}

// PrivateKey decrypts the wallet key. The decryption key comes from the configured env var,
// or failing that from keyPasser, which is asked again after a wrong key.
func (c Config) PrivateKey(keyPasser KeyPasser) (*ecdsa.PrivateKey, error) {
	if c.Wallet.Key == "" {
		return nil, errors.New("wallet key is not configured")
	}

	if c.Wallet.DecryptKeyEnv != "" {
		if key := os.Getenv(c.Wallet.DecryptKeyEnv); key != "" {
			return decryptKey(key, c.Wallet.Key)
		}
	}
	if keyPasser == nil {
		return nil, fmt.Errorf("no decrypt key: set %s", c.Wallet.DecryptKeyEnv)
	}

	var err error
	for i := 0; i < maxKeyAttempts; i++ {
		var pk *ecdsa.PrivateKey
		pk, err = decryptKey(keyPasser.InitKey(err), c.Wallet.Key)
		if err == nil {
			return pk, nil
		}
	}
	return nil, err
}

func decryptKey(key, cipherText string) (*ecdsa.PrivateKey, error) {
	plain, err := util.Decrypt([]byte(key), cipherText)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt wallet key: %w", err)
	}
	pk, err := chain.ParsePrivateKey(plain)
	if err != nil {
		return nil, errors.New("failed to decrypt wallet key: wrong decrypt key")
	}
	return pk, nil
}

func (c Config) MinGas() decimal.Decimal {
	return decimal.RequireFromString(c.Keeper.MinGas)
}

func (c Config) PoolConfig() algebra.Config {
	return algebra.Config{
		Pool:     common.HexToAddress(c.Pool.Address),
		NPM:      common.HexToAddress(c.Pool.NPM),
		Deployer: common.HexToAddress(c.Pool.Deployer),
		TokenA:   common.HexToAddress(c.Pool.TokenA),
		TokenB:   common.HexToAddress(c.Pool.TokenB),
	}
}

func (c Config) SwapConfig(user common.Address) swapapi.Config {
	return swapapi.Config{
		BaseURL:     c.Swap.BaseURL,
		ChainID:     c.Chain.ChainID,
		SlippageBps: c.Swap.SlippageBps,
		User:        user,
	}
}

func (c Config) Policies() binkeeper.Policies {
	return binkeeper.Policies{
		Swap:    c.Retry.Swap,
		Create:  c.Retry.Create,
		Remove:  c.Retry.Remove,
		Query:   c.Retry.Query,
		Startup: c.Retry.Startup,
	}
}

// KeeperConfig fills the tunables. The caller wires the collaborators.
func (c Config) KeeperConfig() binkeeper.KeeperConfig {
	return binkeeper.KeeperConfig{
		TokenA:       common.HexToAddress(c.Pool.TokenA),
		TokenB:       common.HexToAddress(c.Pool.TokenB),
		HalfWidth:    c.Pool.HalfWidth,
		SlippageBps:  c.Pool.SlippageBps,
		RemoveBps:    c.Keeper.RemoveBps,
		MinGas:       c.MinGas(),
		PollInterval: c.Keeper.PollInterval,
		Retry:        c.Policies(),
	}
}

func (c Config) BotConfig() (*bot.TeleBotConfig, error) {
	if c.Telegram.Token == "" || c.Telegram.ChatID == 0 {
		return nil, errors.New("telegram is not configured")
	}
	return &bot.TeleBotConfig{
		Token:  c.Telegram.Token,
		ChatId: c.Telegram.ChatID,
	}, nil
}

func (c Config) RedisConfig() *db.RedisConfig {
	return &db.RedisConfig{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}

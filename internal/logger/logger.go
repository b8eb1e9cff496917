package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level  zerolog.Level
	File   string // rolling log file, empty for stdout only
	Pretty bool
}

var output io.Writer = os.Stdout

// Init sets the global level and the writer shared by every module logger.
func Init(conf Config) {
	zerolog.SetGlobalLevel(conf.Level)

	var console io.Writer = os.Stdout
	if conf.Pretty {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	}

	if conf.File == "" {
		output = console
	} else {
		output = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   conf.File,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

func New(module string) zerolog.Logger {
	return zerolog.New(output).With().Str("Module", module).Timestamp().Logger()
}

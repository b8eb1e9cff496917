package bot

import (
	"strings"

	"binkeeper"
	"binkeeper/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const helpText = `명령어 목록
/status  현재 포지션 상태
/help    명령어 목록`

type StatusSource interface {
	Snapshot() binkeeper.Status
}

type TeleBot struct {
	bot     *tgbotapi.BotAPI
	chatId  int64
	updates tgbotapi.UpdatesChannel
	lg      zerolog.Logger
}

type TeleBotConfig struct {
	Token  string
	ChatId int64
}

func NewTeleBot(conf *TeleBotConfig) (*TeleBot, error) {

	bot, err := tgbotapi.NewBotAPI(conf.Token)
	if err != nil {
		return nil, err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	return &TeleBot{
		bot:     bot,
		chatId:  conf.ChatId,
		updates: updates,
		lg:      logger.New("TeleBot"),
	}, nil
}

// Run forwards keeper reports to the chat and answers commands until ch is closed.
func (t *TeleBot) Run(ch <-chan string, src StatusSource) {
	t.SendMessage("LAUNCHED SUCCESSFULLY")

	go t.communicate(src)

	for msg := range ch {
		t.SendMessage(msg)
		t.lg.Info().Msg(msg)
	}
}

func (t *TeleBot) InitKey(msg error) string {

	if msg == nil {
		t.SendMessage("Enter decrypt key for binkeeper wallet")
	} else {
		t.SendMessage(msg.Error())
	}

	for update := range t.updates {
		if update.Message != nil && update.Message.Chat.ID == t.chatId {
			return update.Message.Text
		}
	}
	return ""
}

func (t *TeleBot) SendMessage(msg string) {
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatId, msg)); err != nil {
		t.lg.Warn().Err(err).Msg("failed to send telegram message")
	}
}

func (t *TeleBot) communicate(src StatusSource) {

	for update := range t.updates {
		if update.Message == nil || update.Message.Chat.ID != t.chatId {
			continue
		}
		if rtn := answer(src, update.Message.Text); rtn != "" {
			t.SendMessage(rtn)
		}
	}
}

func answer(src StatusSource, txt string) string {
	txt = strings.TrimSpace(txt)
	if !strings.HasPrefix(txt, "/") {
		return ""
	}

	switch strings.Fields(txt)[0] {
	case "/status":
		if src == nil {
			return "keeper is not running"
		}
		return binkeeper.RenderSummary(src.Snapshot())
	case "/help":
		return helpText
	default:
		return "unknown command. " + helpText
	}
}

package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"agent-chatter/internal/access"
	"agent-chatter/internal/chat"
)

const (
	resetCmd      = "reset_ctx"
	approvePrefix = "approve:"
	denyPrefix    = "deny:"

	// telegram rejects longer messages
	maxMessageLen = 4096
)

type Bot struct {
	api        *tgbotapi.BotAPI
	s          sender
	access     *access.Service
	registry   *chat.Registry
	dispatcher *chat.Dispatcher
}

func New(botToken string, acc *access.Service, registry *chat.Registry, dispatcher *chat.Dispatcher) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	log.Printf("[telegram] authorized as @%s", api.Self.UserName)
	return &Bot{
		api:        api,
		s:          botAPISender{api: api},
		access:     acc,
		registry:   registry,
		dispatcher: dispatcher,
	}, nil
}

// Start polls for updates until ctx is cancelled. Updates are handled one
// at a time, so each chat sees its turns in order.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message != nil {
			b.handleIncomingMessage(ctx, update.Message)
			continue
		}
		if update.CallbackQuery != nil {
			b.handleCallback(update.CallbackQuery)
		}
	}
}

func conversationKey(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if !b.access.IsAllowed(msg.From.ID) {
		log.Printf("[telegram] unauthorized access attempt by %d (@%s)", msg.From.ID, msg.From.UserName)
		first, err := b.access.Request(access.Operator{ID: msg.From.ID, Username: msg.From.UserName})
		if err != nil {
			log.Printf("[telegram] failed to persist access request: %v", err)
		}
		if !first {
			b.sendMessage(msg.Chat.ID, "Your access request is waiting for the administrator.")
			return
		}
		b.sendMessage(msg.Chat.ID, "Access request sent to the administrator.")
		b.notifyAdminRequest(msg.From.ID, msg.From.UserName)
		return
	}
	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}
	if msg.Text == "" {
		b.sendMessage(msg.Chat.ID, "Only text messages are supported.")
		return
	}

	conv := b.registry.Get(conversationKey(msg.Chat.ID))
	log.Printf("[telegram] turn from %d in %s", msg.From.ID, conv.Key)

	if _, err := b.s.Request(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping)); err != nil {
		log.Printf("[telegram] failed to send typing action: %v", err)
	}

	reply, err := b.dispatcher.Submit(ctx, conv, msg.Text, nil)
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		return
	case errors.Is(err, chat.ErrAgentNotConfigured):
		b.sendMessage(msg.Chat.ID, chat.MissingAgentPrompt+"\nUse /agent <rid>.")
		return
	case err != nil:
		log.Printf("[telegram] turn failed for %s: %v", conv.Key, err)
		b.sendMessage(msg.Chat.ID, "Agent request failed: "+err.Error())
		return
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("New conversation", resetCmd),
		),
	)
	chunks := splitMessage(reply.Content, maxMessageLen)
	for i, chunk := range chunks {
		out := tgbotapi.NewMessage(msg.Chat.ID, chunk)
		if i == len(chunks)-1 {
			out.ReplyMarkup = kb
		}
		if _, err := b.s.Send(out); err != nil {
			log.Printf("[telegram] failed to send message: %v", err)
		}
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	switch {
	case cb.Data == resetCmd:
		if !b.access.IsAllowed(cb.From.ID) {
			return
		}
		b.registry.Get(conversationKey(cb.Message.Chat.ID)).Reset()
		b.sendMessage(cb.Message.Chat.ID, "Conversation reset.")
	case strings.HasPrefix(cb.Data, approvePrefix), strings.HasPrefix(cb.Data, denyPrefix):
		if !b.access.IsAdmin(cb.From.ID) {
			return
		}
		approve := strings.HasPrefix(cb.Data, approvePrefix)
		raw := strings.TrimPrefix(strings.TrimPrefix(cb.Data, approvePrefix), denyPrefix)
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Printf("[telegram] bad callback payload %q", cb.Data)
			return
		}
		if approve {
			b.approve(cb.Message.Chat.ID, id)
		} else {
			b.deny(cb.Message.Chat.ID, id)
		}
	}
}

func (b *Bot) notifyAdminRequest(userID int64, username string) {
	admin := b.adminID()
	if admin == 0 {
		return
	}
	text := fmt.Sprintf("User @%s (id %d) wants to use the bot", username, userID)
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("allow", approvePrefix+strconv.FormatInt(userID, 10)),
			tgbotapi.NewInlineKeyboardButtonData("deny", denyPrefix+strconv.FormatInt(userID, 10)),
		),
	)
	msg := tgbotapi.NewMessage(admin, text)
	msg.ReplyMarkup = kb
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("[telegram] failed to notify admin: %v", err)
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("[telegram] failed to send message: %v", err)
	}
}

// splitMessage cuts text into chunks of at most limit bytes without
// splitting a UTF-8 sequence, preferring line breaks.
func splitMessage(text string, limit int) []string {
	if text == "" {
		return []string{"(empty response)"}
	}
	var out []string
	for len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if nl := strings.LastIndexByte(text[:cut], '\n'); nl > limit/2 {
			cut = nl + 1
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	return append(out, text)
}

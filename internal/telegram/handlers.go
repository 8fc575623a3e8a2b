package telegram

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"agent-chatter/internal/access"
	"agent-chatter/internal/history"
)

func (b *Bot) adminID() int64 { return b.access.AdminID() }

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	conv := b.registry.Get(conversationKey(chatID))
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		text := history.Greeting
		if conv.AgentRID() == "" {
			text += "\nSet the agent first with /agent <rid>."
		}
		b.sendMessage(chatID, text)
	case "agent":
		if args == "" {
			if rid := conv.AgentRID(); rid != "" {
				b.sendMessage(chatID, "Current agent: "+rid)
			} else {
				b.sendMessage(chatID, "No agent set. Use /agent <rid>.")
			}
			return
		}
		conv.SetAgentRID(args)
		log.Printf("[telegram] %s switched agent to %s", conv.Key, args)
		b.sendMessage(chatID, "Agent set to "+conv.AgentRID())
	case "reset":
		conv.Reset()
		b.sendMessage(chatID, "Conversation reset.")
	case "allow", "deny", "revoke", "users", "pending":
		if !b.access.IsAdmin(msg.From.ID) {
			b.sendMessage(chatID, "Only the administrator can do that.")
			return
		}
		b.handleAdminCommand(msg.Command(), chatID, args)
	default:
		b.sendMessage(chatID, "Unknown command.")
	}
}

func (b *Bot) handleAdminCommand(cmd string, chatID int64, args string) {
	switch cmd {
	case "users":
		b.sendOperators(chatID, b.access.List(), "No users allowed yet.")
		return
	case "pending":
		b.sendOperators(chatID, b.access.Pending(), "No pending requests.")
		return
	}

	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		b.sendMessage(chatID, fmt.Sprintf("Usage: /%s <user id>", cmd))
		return
	}
	switch cmd {
	case "allow":
		b.approve(chatID, id)
	case "deny":
		b.deny(chatID, id)
	case "revoke":
		if err := b.access.Revoke(id); err != nil {
			log.Printf("[telegram] revoke %d: %v", id, err)
			b.sendMessage(chatID, "Failed to revoke: "+err.Error())
			return
		}
		b.registry.Remove(conversationKey(id))
		b.sendMessage(chatID, fmt.Sprintf("User %d revoked.", id))
	}
}

func (b *Bot) sendOperators(chatID int64, ops []access.Operator, empty string) {
	if len(ops) == 0 {
		b.sendMessage(chatID, empty)
		return
	}
	var sb strings.Builder
	for _, op := range ops {
		if op.Username != "" {
			fmt.Fprintf(&sb, "%d @%s\n", op.ID, op.Username)
		} else {
			fmt.Fprintf(&sb, "%d\n", op.ID)
		}
	}
	b.sendMessage(chatID, strings.TrimRight(sb.String(), "\n"))
}

// approve allows id, keeping the username of its pending request, and
// tells the user.
func (b *Bot) approve(chatID, id int64) {
	op, err := b.access.Approve(id)
	if err != nil {
		log.Printf("[telegram] allow %d: %v", id, err)
		b.sendMessage(chatID, "Failed to allow: "+err.Error())
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("User %d allowed.", op.ID))
	b.sendMessage(id, "Access granted. Send a message to start.")
}

func (b *Bot) deny(chatID, id int64) {
	had, err := b.access.Deny(id)
	if err != nil {
		log.Printf("[telegram] deny %d: %v", id, err)
	}
	if !had {
		b.sendMessage(chatID, fmt.Sprintf("No pending request from %d.", id))
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("Request from %d declined.", id))
	b.sendMessage(id, "Your access request was declined.")
}

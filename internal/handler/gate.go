package handler

import (
	"strings"

	"github.com/glintworks/whatskb/internal/store"
)

// ShouldProcess is the policy gate deciding whether a message enters the
// answer pipeline. It is a pure function with the rules applied in order:
//
//  1. messages without text are never processed
//  2. a direct message carries no group restrictions
//  3. a message from an unmanaged group is silently ignored
//  4. the bot must be explicitly mentioned (substring match on the bot's
//     JID user part)
func ShouldProcess(msg *store.Message, botUser string) bool {
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return false
	}
	if msg.Group != nil && !msg.Group.Managed {
		return false
	}
	return mentioned(msg.Text, botUser)
}

func mentioned(text, botUser string) bool {
	if botUser == "" {
		return false
	}
	return strings.Contains(text, botUser)
}

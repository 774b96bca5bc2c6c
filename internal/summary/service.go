// Package summary produces daily activity digests for managed groups.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/glintworks/whatskb/internal/llm"
	"github.com/glintworks/whatskb/internal/store"
)

const summaryWindow = 24 * time.Hour

// SystemPrompt is the persona bound to the summarizer model client.
func SystemPrompt(company string) string {
	return fmt.Sprintf(`You write short daily digests of %s workspace group chats.
Summarize only what was actually discussed. Do not invent activity, and do not add greetings or sign-offs.`, company)
}

// GroupLister enumerates the groups eligible for a digest.
type GroupLister interface {
	ListManagedGroups(ctx context.Context) ([]store.Group, error)
}

// MessageReader loads a group's messages for the summary window.
type MessageReader interface {
	MessagesSince(ctx context.Context, chatJID string, since time.Time) ([]store.Message, error)
}

// Sender delivers a digest to its group.
type Sender interface {
	SendText(ctx context.Context, chatJID, text string) error
}

// Service summarizes the last day of conversation in every managed group
// and posts the digest back to the group.
type Service struct {
	groups     GroupLister
	messages   MessageReader
	summarizer llm.Client
	sender     Sender
	retrier    *llm.Retrier
}

func NewService(groups GroupLister, messages MessageReader, summarizer llm.Client, sender Sender) *Service {
	return &Service{
		groups:     groups,
		messages:   messages,
		summarizer: summarizer,
		sender:     sender,
		retrier:    llm.NewRetrier(),
	}
}

// Run summarizes every managed group. A failure in one group is logged
// and does not stop the sweep; Run reports how many digests were sent.
func (s *Service) Run(ctx context.Context) (int, error) {
	groups, err := s.groups.ListManagedGroups(ctx)
	if err != nil {
		return 0, fmt.Errorf("list groups for summary: %w", err)
	}

	since := time.Now().Add(-summaryWindow)
	sent := 0
	for _, g := range groups {
		err := s.summarizeGroup(ctx, g.JID, since)
		if errors.Is(err, errNoActivity) {
			continue
		}
		if err != nil {
			log.Printf("[summary] group %s: %v", g.JID, err)
			continue
		}
		sent++
	}
	log.Printf("[summary] sent %d digests across %d managed groups", sent, len(groups))
	return sent, nil
}

var errNoActivity = errors.New("no activity in window")

func (s *Service) summarizeGroup(ctx context.Context, chatJID string, since time.Time) error {
	messages, err := s.messages.MessagesSince(ctx, chatJID, since)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	if len(messages) == 0 {
		return errNoActivity
	}

	prompt := buildSummaryPrompt(messages)
	digest, err := s.retrier.Do(ctx, "summarize", func(ctx context.Context) (string, error) {
		return s.summarizer.Run(ctx, prompt)
	})
	if err != nil {
		return err
	}

	return s.sender.SendText(ctx, chatJID, digest)
}

func buildSummaryPrompt(messages []store.Message) string {
	var sb strings.Builder
	sb.WriteString("Summarize the following group conversation from the last 24 hours.\n")
	sb.WriteString("Highlight questions asked, answers given, and any open items.\n")
	sb.WriteString("Keep it short and write in the language the group uses.\n\n")
	for _, m := range messages {
		name := m.PushName
		if name == "" {
			name = m.SenderJID
		}
		fmt.Fprintf(&sb, "[%s] %s: %s\n", m.Timestamp.Format("15:04"), name, m.Text)
	}
	return sb.String()
}

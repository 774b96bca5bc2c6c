package handler

import (
	"testing"

	"github.com/glintworks/whatskb/internal/store"
)

func TestShouldProcess(t *testing.T) {
	managed := &store.Group{JID: "g@g.us", Managed: true}
	unmanaged := &store.Group{JID: "g@g.us", Managed: false}

	tests := []struct {
		name    string
		msg     *store.Message
		botUser string
		want    bool
	}{
		{"nil message", nil, "12345", false},
		{"empty text", &store.Message{Text: ""}, "12345", false},
		{"whitespace text", &store.Message{Text: "  \n\t"}, "12345", false},
		{"dm with mention", &store.Message{Text: "hey @12345 how do I log in?"}, "12345", true},
		{"dm without mention", &store.Message{Text: "how do I log in?"}, "12345", false},
		{"managed group with mention", &store.Message{Text: "@12345 help", Group: managed}, "12345", true},
		{"managed group without mention", &store.Message{Text: "help", Group: managed}, "12345", false},
		{"unmanaged group with mention", &store.Message{Text: "@12345 help", Group: unmanaged}, "12345", false},
		{"empty bot user", &store.Message{Text: "help"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldProcess(tt.msg, tt.botUser); got != tt.want {
				t.Errorf("ShouldProcess() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ABOUTME: Formatting utilities for client front ends
// ABOUTME: Shared functions for displaying traffic, chat lines, rosters and channel lists
package client

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/butembo/butembochat/pkg/protocol"
)

// FormatBytes formats bytes into human-readable form (B, KB, MB, etc.)
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%dB", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatMessageLine formats a chat line for display
// Returns: "[channel] sender: text"
func FormatMessageLine(channel string, msg Message) string {
	// Newlines would break line-oriented output
	text := strings.ReplaceAll(msg.Text, "\n", " ")
	return fmt.Sprintf("[%s] %s: %s", channel, msg.Sender.Name, text)
}

// FormatRoster lists member names sorted case-insensitively, with the user
// ID appended where names collide
func FormatRoster(members map[string]string) string {
	type entry struct{ id, name string }
	entries := make([]entry, 0, len(members))
	counts := make(map[string]int, len(members))
	for id, name := range members {
		entries = append(entries, entry{id, name})
		counts[name]++
	}

	slices.SortFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(strings.ToLower(a.name), strings.ToLower(b.name)); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if counts[e.name] > 1 {
			names = append(names, fmt.Sprintf("%s (%s)", e.name, e.id))
			continue
		}
		names = append(names, e.name)
	}
	return strings.Join(names, ", ")
}

// FormatChannelsInfo formats a channel list, one channel per line
// Returns lines like "general  3 users"
func FormatChannelsInfo(info []protocol.ChannelInfo) string {
	width := 0
	for _, ch := range info {
		width = max(width, len(ch.Name))
	}

	var b strings.Builder
	for i, ch := range info {
		if i > 0 {
			b.WriteByte('\n')
		}
		noun := "users"
		if ch.UserCount == 1 {
			noun = "user"
		}
		fmt.Fprintf(&b, "%-*s  %d %s", width, ch.Name, ch.UserCount, noun)
	}
	return b.String()
}

// TruncateText shortens text to at most maxChars runes, ending with "..."
// when truncated
func TruncateText(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	if maxChars <= 3 {
		return string(runes[:maxChars])
	}
	return string(runes[:maxChars-3]) + "..."
}

// FormatRelativeTime formats a timestamp relative to now
// Returns strings like "just now", "5m ago", "2h ago", "3d ago"
func FormatRelativeTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	if diff < time.Minute {
		return "just now"
	}
	if diff < time.Hour {
		mins := int(diff.Minutes())
		return fmt.Sprintf("%dm ago", mins)
	}
	if diff < 24*time.Hour {
		hours := int(diff.Hours())
		return fmt.Sprintf("%dh ago", hours)
	}
	days := int(diff.Hours() / 24)
	return fmt.Sprintf("%dd ago", days)
}

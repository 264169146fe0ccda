package notifications

import (
	"context"
	"fmt"
)

// EntryNotifier announces recorded lottery entries on one channel.
type EntryNotifier struct {
	sender  *WebhookSender
	channel Channel
}

func NewEntryNotifier(sender *WebhookSender, channel Channel) *EntryNotifier {
	return &EntryNotifier{sender: sender, channel: channel}
}

func (n *EntryNotifier) Enabled() bool { return n != nil && n.channel.URL != "" }

// EntryRecorded posts a message for a new entry. Contact details are never included.
func (n *EntryNotifier) EntryRecorded(ctx context.Context, entryID, drawLabel string, total int) error {
	title := "New lottery entry"
	msg := fmt.Sprintf("Entry %s joined the %s drawing (%d entries so far).", entryID, drawLabel, total)
	return n.sender.Send(ctx, n.channel, title, msg)
}

// DrawClosed posts a message when a drawing stops taking entries.
func (n *EntryNotifier) DrawClosed(ctx context.Context, drawLabel string, total int) error {
	title := "Drawing closed"
	msg := fmt.Sprintf("The %s drawing closed with %d entries.", drawLabel, total)
	return n.sender.Send(ctx, n.channel, title, msg)
}

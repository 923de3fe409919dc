package keyboard

import tele "gopkg.in/telebot.v4"

// DefaultLocationButtonText labels the share-location button.
const DefaultLocationButtonText = "📍 Share location"

// RemoveKeyboard returns a markup that hides the keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// LocationRequest returns a one-time reply keyboard with a single button that
// asks the client to share its current location.
func LocationRequest(label string) *tele.ReplyMarkup {
	if label == "" {
		label = DefaultLocationButtonText
	}
	markup := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	markup.Reply(markup.Row(markup.Location(label)))
	return markup
}

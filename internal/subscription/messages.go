package subscription

import "fmt"

// User-facing texts.
const (
	MsgSubscribePrompt     = "Please share your location so I can find your city."
	MsgInfoPrompt          = "Please share your location to get the current weather."
	MsgAwaitingLocation    = "I am waiting for your location. Tap the button below to share it."
	MsgBlocked             = "Sorry, you have been blocked by admin"
	MsgAlreadyRegistered   = "You are already registered."
	MsgRegistered          = "You have been registered."
	MsgRegistrationFailed  = "Registration failed. Please try again."
	MsgNotSubscribed       = "Sorry you are not subscribed. please subscribed by typing /subscribe"
	MsgUnregistered        = "You have been unregistered."
	MsgUnregisterFailed    = "Unregistration failed. Please try again."
	MsgNotRegistered       = "You are not registered."
	MsgUnknownCity         = "Sorry, I could not determine your city from this location."
	MsgSomethingWentWrong  = "Something went wrong!"
	MsgHelp                = "I only understand commands.\n/subscribe to register with your location\n/info for the current weather\n/unsubscribe to stop updates"
	welcomeFormat          = "Hi %s, welcome to the weather bot, you can subscribe by using the /subscribe command, and unsubscribe using /unsubscribe command and /info for weather command."
	defaultWelcomeUserName = "there"
)

// Welcome renders the /start greeting.
func Welcome(name string) string {
	if name == "" {
		name = defaultWelcomeUserName
	}
	return fmt.Sprintf(welcomeFormat, name)
}

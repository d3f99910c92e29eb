package chat

import "fmt"

const (
	staleReply = "Those actions were already handled or have expired. Tell me what you'd like to do."
	emptyReply = "Sorry, I don't have an answer for that. Could you rephrase?"
)

func declineReply(n int) string {
	if n == 1 {
		return "Okay, I cancelled the pending action."
	}
	return fmt.Sprintf("Okay, I cancelled the %d pending actions.", n)
}

func repromptReply(summary string, guarded bool, token string) string {
	if guarded {
		return fmt.Sprintf("You still have pending actions (%s). Type %s to apply them or \"no\" to cancel.", summary, token)
	}
	return fmt.Sprintf("You still have pending actions (%s). Reply \"yes\" to apply them or \"no\" to cancel.", summary)
}

func guardReply(deletes int, token string) string {
	return fmt.Sprintf("This will delete %d items. Type %s to confirm or \"no\" to cancel.", deletes, token)
}

func proposalReply(summary string) string {
	return fmt.Sprintf("I can do this for you: %s. Shall I go ahead?", summary)
}

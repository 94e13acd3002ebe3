package chat

import "strings"

// Intent labels one class of question the responder can answer.
type Intent string

const (
	IntentHours            Intent = "hours"
	IntentContact          Intent = "contact"
	IntentBorrowHistory    Intent = "memberBorrowHistory"
	IntentOverdue          Intent = "overdue"
	IntentMembersWithFines Intent = "membersWithFines"
	IntentFines            Intent = "fines"
	IntentSummary          Intent = "summary"
	IntentBorrowedOnDate   Intent = "borrowedOnDate"
	IntentCurrentBorrowed  Intent = "currentBorrowed"
	IntentAvailableBooks   Intent = "availableBooks"
	IntentBorrowedAll      Intent = "borrowedBooksAll"
	IntentReturnedOnDate   Intent = "returnedOnDate"
	IntentGeneral          Intent = "general"
)

type rule struct {
	intent Intent
	match  func(text string) bool
}

func anyOf(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// rules is the classification table, evaluated top-down against the
// lowercased message; the first matching row wins. Order matters: the
// broader keyword rows sit below the more specific ones that share their
// vocabulary (membersWithFines before fines, borrowedOnDate before the
// generic borrowed rows).
var rules = []rule{
	{IntentHours, func(t string) bool {
		return anyOf(t, "open", "close", "time", "hour")
	}},
	{IntentContact, func(t string) bool {
		return anyOf(t, "contact", "phone", "email", "address")
	}},
	{IntentBorrowHistory, func(t string) bool {
		return anyOf(t, "what", "which") &&
			strings.Contains(t, "book") &&
			strings.Contains(t, "member") &&
			strings.Contains(t, "borrowed")
	}},
	{IntentOverdue, func(t string) bool {
		return anyOf(t, "overdue", "late")
	}},
	{IntentMembersWithFines, func(t string) bool {
		return anyOf(t, "members", "which", "who") &&
			anyOf(t, "fine", "fines", "penalty", "fees")
	}},
	{IntentFines, func(t string) bool {
		return anyOf(t, "fine", "penalty", "fees")
	}},
	{IntentSummary, func(t string) bool {
		return anyOf(t, "summary", "history", "activity")
	}},
	{IntentBorrowedOnDate, func(t string) bool {
		return anyOf(t, "borrowed books", "books borrowed", "borrowed") &&
			strings.Contains(t, "on")
	}},
	{IntentCurrentBorrowed, func(t string) bool {
		return anyOf(t, "currently borrowed", "currently have", "current borrowed", "current books", "my books") ||
			(strings.Contains(t, "borrowed") && anyOf(t, "now", "right now"))
	}},
	{IntentAvailableBooks, func(t string) bool {
		return (strings.Contains(t, "available") && strings.Contains(t, "book")) ||
			anyOf(t, "available booklist", "available books")
	}},
	{IntentBorrowedAll, func(t string) bool {
		return strings.Contains(t, "borrowed books") ||
			(strings.Contains(t, "who") && strings.Contains(t, "borrowed"))
	}},
	{IntentReturnedOnDate, func(t string) bool {
		return strings.Contains(t, "returned books") ||
			(strings.Contains(t, "returned") && strings.Contains(t, "books"))
	}},
}

// Classify maps a raw message onto an intent.
func Classify(message string) Intent {
	text := strings.ToLower(message)
	for _, r := range rules {
		if r.match(text) {
			return r.intent
		}
	}
	return IntentGeneral
}

// memberScoped reports whether the intent needs a resolved member.
func memberScoped(intent Intent) bool {
	switch intent {
	case IntentCurrentBorrowed, IntentOverdue, IntentFines, IntentSummary, IntentBorrowHistory:
		return true
	}
	return false
}

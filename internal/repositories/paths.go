package repositories

import (
	"sort"
	"strconv"

	"messaging-service/internal/store"
)

func chatPath(chatID string) string {
	return store.Join("chats", chatID)
}

// pairPath length-prefixes the first id so ids containing ":" cannot alias
// another pair.
func pairPath(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return store.Join("chat_pairs", strconv.Itoa(len(ids[0]))+":"+ids[0]+":"+ids[1])
}

// MessagesPath is the subtree holding every message of a chat.
func MessagesPath(chatID string) string {
	return store.Join("messages", chatID)
}

func messagePath(chatID, messageID string) string {
	return store.Join("messages", chatID, messageID)
}

func membershipPath(userID, chatID string) string {
	return store.Join("memberships", userID, chatID)
}

func invitePath(code string) string {
	return store.Join("invites", code)
}

func suspensionPath(chatID, userID string) string {
	return store.Join("suspensions", chatID, userID)
}

func privacyPath(userID string) string {
	return store.Join("privacy", userID)
}

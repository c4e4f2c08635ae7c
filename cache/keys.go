package cache

import (
	"crypto/md5" //nolint:gosec // key derivation, not security
	"encoding/hex"
	"strconv"
)

// Anonymous stands in for the user id in per-user keys when no user is known.
const Anonymous = "anon"

func BookEmbeddingKey(bookID string) string {
	return "book_embedding_" + bookID
}

func UserRecommendationsKey(userID string) string {
	return "user_recommendations_" + userID
}

// BookDetailKey scopes a book detail view to a user, or to the anonymous view
// when userID is empty.
func BookDetailKey(bookID, userID string) string {
	if userID == "" {
		userID = Anonymous
	}
	return "book_full_detail_" + bookID + "_" + userID
}

func BookSummaryKey(bookID string) string {
	return "book_summary_gemini_" + bookID
}

func AuthorDetailKey(name string) string {
	return "author_detail_" + name
}

// TextDigest hashes text together with the requested summary length.
func TextDigest(text string, maxWords int) string {
	sum := md5.Sum([]byte(text + strconv.Itoa(maxWords))) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

func TextSummaryKey(digest string) string {
	return "user_summary_text_" + digest
}

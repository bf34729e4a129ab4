package entity

import (
	"strings"
	"time"
)

// Article is a row of the articles table. FullName is the owner's display
// name and is only filled by lookups that join users_and_admins.
type Article struct {
	ID        int64     `db:"id" json:"id"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	Category  string    `db:"category" json:"category"`
	FullName  string    `db:"full_name" json:"full_name,omitempty"`
}

// VisitCount is the number of recorded views of one article.
type VisitCount struct {
	ArticleID int64 `db:"article_id" json:"article_id"`
	Visits    int64 `db:"visits" json:"visits"`
}

// JoinParagraphs renders paragraphs as stored content: each element wrapped
// in <p></p>, in order. Elements are stored as given, without escaping.
func JoinParagraphs(paragraphs []string) string {
	var b strings.Builder
	for _, p := range paragraphs {
		b.WriteString("<p>")
		b.WriteString(p)
		b.WriteString("</p>")
	}
	return b.String()
}

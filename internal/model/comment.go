package model

// Comment is a row in the `comments` table.  UserID references
// users.user_id and must name an existing user when the comment is written.
type Comment struct {
	CommentID int64  `json:"commentId"`
	Payload   string `json:"payload"`
	UserID    int64  `json:"userId"`
}

// Comments describes the `comments` table.
var Comments = &Entity{
	Name: "comments",
	Columns: []Column{
		{Field: "commentId", Name: "comment_id", Kind: KindInteger, PrimaryKey: true},
		{Field: "payload", Name: "payload", Kind: KindText},
		{Field: "userId", Name: "user_id", Kind: KindInteger},
	},
	Rules: map[string]string{
		"payload": "required",
		"userId":  "required,gt=0",
	},
}

func (c Comment) Values() Values {
	v := Values{"payload": c.Payload, "userId": c.UserID}
	if c.CommentID != 0 {
		v["commentId"] = c.CommentID
	}
	return v
}

func CommentFromValues(v Values) Comment {
	return Comment{
		CommentID: Int(v, "commentId"),
		Payload:   Text(v, "payload"),
		UserID:    Int(v, "userId"),
	}
}

// CommentWithAuthor is one row of the comments ⟕ users join.  Author is nil
// when the comment's user does not exist.
type CommentWithAuthor struct {
	Comment Comment `json:"comment"`
	Author  *User   `json:"author"`
}

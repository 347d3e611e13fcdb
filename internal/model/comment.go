package model

// MaxCommentLength is the longest comment text accepted.
const MaxCommentLength = 200

// Comment belongs to a post through PostID. The reference is checked when the
// comment is created and never again: deleting the post leaves it orphaned.
type Comment struct {
	ID      string `json:"id"      bson:"_id,omitempty"`
	PostID  string `json:"postId"  bson:"postId"`
	Comment string `json:"comment" bson:"comment"`
}

// NewComment is the payload for POST /comment.
type NewComment struct {
	PostID  string `json:"postId"  validate:"required"`
	Comment string `json:"comment" validate:"required,max=200"`
}

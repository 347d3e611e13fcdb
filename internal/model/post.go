package model

// Post is a piece of content.
//
// Comments is a denormalised list of strings kept for compatibility with the
// stored document shape. Nothing keeps it in sync with the comments
// collection; use CommentService.ListByPost for the real comments.
type Post struct {
	ID       string   `json:"id"       bson:"_id,omitempty"`
	Title    string   `json:"title"    bson:"title"`
	Content  string   `json:"content"  bson:"content"`
	Comments []string `json:"comments" bson:"comments"`
}

// NewPost is the payload for POST /posts. Any comments the caller sends are
// ignored: a new post always starts with an empty list.
type NewPost struct {
	Title    string   `json:"title"   validate:"required,min=3"`
	Content  string   `json:"content" validate:"required"`
	Comments []string `json:"comments,omitempty"`
}

// PostPatch is a partial update. Nil fields are left untouched.
type PostPatch struct {
	Title   *string `json:"title,omitempty"   validate:"omitempty,min=3"`
	Content *string `json:"content,omitempty"`
}

// Fields returns the patch as stored field name -> value, skipping nil fields.
func (p PostPatch) Fields() map[string]any {
	fields := make(map[string]any)
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.Content != nil {
		fields["content"] = *p.Content
	}
	return fields
}

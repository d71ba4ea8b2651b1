package model

import "time"

// Category groups posts. Deleting a category leaves its posts uncategorised.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Post is a blog entry.
//
// CategoryID is nil when the post has no category (never set, or the category
// was deleted). Image is the media-relative path of the uploaded picture, e.g.
// "posts/cv37rs3pp9olc6atsptg.jpg"; an empty string means no image.
//
// Author and Category are filled by queries that join them for display and are
// ignored on writes.
type Post struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	AuthorID      int64     `json:"authorId"`
	CategoryID    *int64    `json:"categoryId,omitempty"`
	PublishedDate time.Time `json:"publishedDate"`
	Image         string    `json:"image,omitempty"`
	IsPublished   bool      `json:"isPublished"`

	Author   *User     `json:"author,omitempty"`
	Category *Category `json:"category,omitempty"`
}

// HasImage reports whether an image was uploaded for the post.
func (p *Post) HasImage() bool {
	return p.Image != ""
}

// Comment is a reader's reply on a post.
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"postId"`
	AuthorID  int64     `json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`

	Author *User `json:"author,omitempty"`
}

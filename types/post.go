package types

import "time"

// Post is a piece of published content owned by exactly one user.
type Post struct {
	// ID is the unique identifier of the post.
	ID int64 `json:"id" db:"id"`

	// Title is the headline of the post.
	Title string `json:"title" db:"title"`

	// Content is the body text of the post.
	Content string `json:"content" db:"content"`

	// ImageURL points at the post image. It is either an object key
	// managed by this server (see storage.ImageStore) or an arbitrary URL.
	ImageURL string `json:"image_url" db:"image_url"`

	// CreatorID references the user who created the post. It never
	// changes after creation.
	CreatorID int64 `json:"creator_id" db:"creator_id"`

	// Creator is the resolved creator. Repositories populate it on reads.
	Creator *User `json:"creator,omitempty" db:"-"`

	// CreatedAt is set by the persistence layer when the post is inserted.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is set by the persistence layer on every write.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PostView is the normalized form of a Post returned to clients.
type PostView struct {
	ID        string      `json:"_id"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	ImageURL  string      `json:"imageUrl"`
	Creator   PostCreator `json:"creator"`
	CreatedAt string      `json:"createdAt"`
	UpdatedAt string      `json:"updatedAt"`
}

// PostCreator is the subset of the creator embedded in a PostView.
type PostCreator struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// PostPage is one pagination window of posts plus the unwindowed total.
type PostPage struct {
	Posts      []Post
	TotalPosts int
}

// PostPageView is the normalized form of a PostPage.
type PostPageView struct {
	Posts      []PostView `json:"posts"`
	TotalPosts int        `json:"totalPosts"`
}

// PostEvent is published on the posts channel after every post write.
type PostEvent struct {
	Action    string    `json:"action"`
	PostID    string    `json:"postId"`
	CreatorID string    `json:"creatorId"`
	At        time.Time `json:"at"`
}

// Post event actions.
const (
	PostCreated = "created"
	PostUpdated = "updated"
	PostDeleted = "deleted"
)

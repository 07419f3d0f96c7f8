package resolvers

import (
	"strconv"
	"time"

	"github.com/feedpress/apiserver/types"
)

// isoLayout renders timestamps as UTC ISO-8601 with millisecond precision.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

func toUserView(user types.User) types.UserView {
	posts := make([]string, 0, len(user.PostIDs))
	for _, id := range user.PostIDs {
		posts = append(posts, formatID(id))
	}
	return types.UserView{
		ID:        formatID(user.ID),
		Email:     user.Email,
		Name:      user.Name,
		Status:    user.Status,
		Posts:     posts,
		CreatedAt: formatTime(user.CreatedAt),
		UpdatedAt: formatTime(user.UpdatedAt),
	}
}

func toPostView(post types.Post) types.PostView {
	creator := types.PostCreator{ID: formatID(post.CreatorID)}
	if post.Creator != nil {
		creator.Name = post.Creator.Name
	}
	return types.PostView{
		ID:        formatID(post.ID),
		Title:     post.Title,
		Content:   post.Content,
		ImageURL:  post.ImageURL,
		Creator:   creator,
		CreatedAt: formatTime(post.CreatedAt),
		UpdatedAt: formatTime(post.UpdatedAt),
	}
}

func toPostPageView(page types.PostPage) types.PostPageView {
	posts := make([]types.PostView, 0, len(page.Posts))
	for _, post := range page.Posts {
		posts = append(posts, toPostView(post))
	}
	return types.PostPageView{Posts: posts, TotalPosts: page.TotalPosts}
}

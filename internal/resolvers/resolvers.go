// Package resolvers implements the nine named operations of the API. Each
// takes the immutable auth state of the request plus an argument bag and
// returns a normalized payload or a *types.Error.
package resolvers

import (
	"context"
	"strconv"
	"strings"

	"github.com/feedpress/apiserver/internal/services"
	"github.com/feedpress/apiserver/types"
)

const msgNoPost = "no post found"

// Authenticator registers and logs in users.
type Authenticator interface {
	Register(ctx context.Context, input services.RegisterInput) (types.User, error)
	Authenticate(ctx context.Context, email, password string) (types.AuthPayload, error)
}

// Users reads and updates accounts.
type Users interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	UpdateStatus(ctx context.Context, id int64, status string) (types.User, error)
}

// Posts manages the post lifecycle.
type Posts interface {
	List(ctx context.Context, page int) (types.PostPage, error)
	Get(ctx context.Context, id int64) (types.Post, error)
	Create(ctx context.Context, creator types.User, input services.PostInput) (types.Post, error)
	Update(ctx context.Context, id int64, requester types.AuthState, input services.PostInput) (types.Post, error)
	Delete(ctx context.Context, id int64, requester types.AuthState) error
}

type UserInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PostInput is the client payload of createPost and updatePost. A nil
// ImageURL means the field was omitted.
type PostInput struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	ImageURL *string `json:"imageUrl"`
}

type PostsArgs struct {
	Page int `json:"page"`
}

type PostArgs struct {
	ID string `json:"id"`
}

type UpdatePostArgs struct {
	ID        string    `json:"id"`
	PostInput PostInput `json:"postInput"`
}

type StatusArgs struct {
	Status string `json:"status"`
}

// Resolver wires the operations to the services behind them.
type Resolver struct {
	auth  Authenticator
	users Users
	posts Posts
}

func New(auth Authenticator, users Users, posts Posts) *Resolver {
	return &Resolver{auth: auth, users: users, posts: posts}
}

// Register creates an account.
func (r *Resolver) Register(ctx context.Context, input UserInput) (types.UserView, error) {
	user, err := r.auth.Register(ctx, services.RegisterInput{
		Email:    input.Email,
		Name:     input.Name,
		Password: input.Password,
	})
	if err != nil {
		return types.UserView{}, err
	}
	return toUserView(user), nil
}

// Login exchanges credentials for a token.
func (r *Resolver) Login(ctx context.Context, args LoginArgs) (types.AuthPayload, error) {
	return r.auth.Authenticate(ctx, args.Email, args.Password)
}

// CreatePost stores a post owned by the requester.
func (r *Resolver) CreatePost(ctx context.Context, auth types.AuthState, input PostInput) (types.PostView, error) {
	if err := services.RequireAuth(auth); err != nil {
		return types.PostView{}, err
	}
	creator, err := r.users.GetByID(ctx, auth.UserID)
	if err != nil {
		return types.PostView{}, err
	}
	post, err := r.posts.Create(ctx, creator, toServiceInput(input))
	if err != nil {
		return types.PostView{}, err
	}
	return toPostView(post), nil
}

// Posts lists one page of posts, newest first.
func (r *Resolver) Posts(ctx context.Context, auth types.AuthState, args PostsArgs) (types.PostPageView, error) {
	if err := services.RequireAuth(auth); err != nil {
		return types.PostPageView{}, err
	}
	page, err := r.posts.List(ctx, args.Page)
	if err != nil {
		return types.PostPageView{}, err
	}
	return toPostPageView(page), nil
}

// Post fetches a single post.
func (r *Resolver) Post(ctx context.Context, auth types.AuthState, args PostArgs) (types.PostView, error) {
	if err := services.RequireAuth(auth); err != nil {
		return types.PostView{}, err
	}
	id, err := parsePostID(args.ID)
	if err != nil {
		return types.PostView{}, err
	}
	post, err := r.posts.Get(ctx, id)
	if err != nil {
		return types.PostView{}, err
	}
	return toPostView(post), nil
}

// UpdatePost edits a post the requester owns.
func (r *Resolver) UpdatePost(ctx context.Context, auth types.AuthState, args UpdatePostArgs) (types.PostView, error) {
	if err := services.RequireAuth(auth); err != nil {
		return types.PostView{}, err
	}
	id, err := parsePostID(args.ID)
	if err != nil {
		return types.PostView{}, err
	}
	post, err := r.posts.Update(ctx, id, auth, toServiceInput(args.PostInput))
	if err != nil {
		return types.PostView{}, err
	}
	return toPostView(post), nil
}

// DeletePost removes a post the requester owns.
func (r *Resolver) DeletePost(ctx context.Context, auth types.AuthState, args PostArgs) (bool, error) {
	if err := services.RequireAuth(auth); err != nil {
		return false, err
	}
	id, err := parsePostID(args.ID)
	if err != nil {
		return false, err
	}
	if err := r.posts.Delete(ctx, id, auth); err != nil {
		return false, err
	}
	return true, nil
}

// User returns the requester's own account.
func (r *Resolver) User(ctx context.Context, auth types.AuthState) (types.UserView, error) {
	if err := services.RequireAuth(auth); err != nil {
		return types.UserView{}, err
	}
	user, err := r.users.GetByID(ctx, auth.UserID)
	if err != nil {
		return types.UserView{}, err
	}
	return toUserView(user), nil
}

// UpdateStatus replaces the requester's status line.
func (r *Resolver) UpdateStatus(ctx context.Context, auth types.AuthState, args StatusArgs) (types.UserView, error) {
	if err := services.RequireAuth(auth); err != nil {
		return types.UserView{}, err
	}
	user, err := r.users.UpdateStatus(ctx, auth.UserID, args.Status)
	if err != nil {
		return types.UserView{}, err
	}
	return toUserView(user), nil
}

func toServiceInput(input PostInput) services.PostInput {
	return services.PostInput{
		Title:    input.Title,
		Content:  input.Content,
		ImageURL: input.ImageURL,
	}
}

// parsePostID maps ids that cannot name a post to NotFound.
func parsePostID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, types.NewNotFound(msgNoPost)
	}
	return id, nil
}

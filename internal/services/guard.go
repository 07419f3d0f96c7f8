package services

import "github.com/feedpress/apiserver/types"

const msgAccessDenied = "access denied"

// RequireAuth fails with Unauthenticated unless the request carried a
// valid token. Call it before touching persistence.
func RequireAuth(state types.AuthState) error {
	if !state.Authenticated || state.UserID < 1 {
		return types.NewUnauthenticated()
	}
	return nil
}

// RequireOwner fails with Forbidden unless the requester created the post.
// The post must already have been loaded, so a missing post reports
// NotFound before ownership is considered.
func RequireOwner(post types.Post, state types.AuthState) error {
	if err := RequireAuth(state); err != nil {
		return err
	}
	if post.CreatorID != state.UserID {
		return types.NewForbidden(msgAccessDenied)
	}
	return nil
}

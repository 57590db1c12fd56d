package service

import (
	"fmt"
	"strings"

	"github.com/sakif/blogspace/internal/model"
)

// AuthorPolicy decides who may write posts. Both funcs are only called with
// a non-nil identity; anonymous callers are rejected before the policy runs.
type AuthorPolicy struct {
	Name      string
	CanCreate func(id *model.Identity) bool
	CanModify func(id *model.Identity, post *model.Post) bool
}

// OwnerPolicy lets any signed-in user publish; a post may be edited or
// deleted by its author or by an admin.
var OwnerPolicy = AuthorPolicy{
	Name:      "owner",
	CanCreate: func(*model.Identity) bool { return true },
	CanModify: func(id *model.Identity, post *model.Post) bool {
		return id.IsAdmin || id.UserID == post.UserID
	},
}

// AdminOnlyPolicy restricts every post write to administrators.
var AdminOnlyPolicy = AuthorPolicy{
	Name:      "admin",
	CanCreate: func(id *model.Identity) bool { return id.IsAdmin },
	CanModify: func(id *model.Identity, _ *model.Post) bool { return id.IsAdmin },
}

// PolicyByName resolves the POST_POLICY setting.
func PolicyByName(name string) (AuthorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", OwnerPolicy.Name:
		return OwnerPolicy, nil
	case AdminOnlyPolicy.Name:
		return AdminOnlyPolicy, nil
	default:
		return AuthorPolicy{}, fmt.Errorf("service: unknown post policy %q", name)
	}
}

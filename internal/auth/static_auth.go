package auth

import "context"

// StaticAuthenticator is a development-only authenticator that accepts any
// well-formed wsk_ key for a fixed workspace.
type StaticAuthenticator struct {
	workspaceID string
}

func NewStaticAuthenticator(workspaceID string) *StaticAuthenticator {
	return &StaticAuthenticator{workspaceID: workspaceID}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, token string) (*WorkspaceContext, error) {
	if len(token) < lookupPrefixLen {
		return nil, ErrInvalidAPIKey
	}
	return &WorkspaceContext{WorkspaceID: a.workspaceID, KeyID: "static-" + token[:lookupPrefixLen]}, nil
}

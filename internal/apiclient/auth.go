package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

// AnonSession — анонімна особа, видана сервером разом із JWT.
type AnonSession struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// NewAnonSession requests a fresh anonymous identity for the given role. No
// personal data is exchanged; the returned token is the only credential.
func (c *Client) NewAnonSession(ctx context.Context, role string) (*AnonSession, error) {
	q := url.Values{}
	q.Set("role", role)
	var session AnonSession
	if err := c.do(ctx, http.MethodGet, "/auth/anon?"+q.Encode(), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

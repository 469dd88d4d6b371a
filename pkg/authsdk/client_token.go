package authsdk

import "context"

// Issue mints a token pair for subject under tenant clientID.
func (c *Client) Issue(ctx context.Context, clientID, subject string) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.postJSON(ctx, "/v1/tokens", TokenRequest{ClientID: clientID, Subject: subject}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh trades a refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context, clientID, refreshToken string) (*TokenResponse, error) {
	var out TokenResponse
	req := RefreshRequest{ClientID: clientID, RefreshToken: refreshToken}
	if err := c.postJSON(ctx, "/v1/tokens/refresh", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Introspect asks whether token is valid for clientID. An invalid token is
// not an error: the response has Active false and a Reason.
func (c *Client) Introspect(ctx context.Context, clientID, token string) (*IntrospectionResponse, error) {
	var out IntrospectionResponse
	req := IntrospectRequest{ClientID: clientID, Token: token}
	if err := c.postJSON(ctx, "/v1/tokens/introspect", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

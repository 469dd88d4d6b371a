package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// Client calls the token service on behalf of one trusted service. Every
// /v1 call carries the basic credential ClientID:Secret; the tenant a token
// is for is passed per call.
type Client struct {
	BaseURL    string
	ClientID   string
	Secret     string
	HTTPClient *http.Client
}

// NewClient returns a Client with a 10 second timeout.
func NewClient(baseURL, clientID, secret string) *Client {
	return &Client{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		ClientID: clientID,
		Secret:   secret,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

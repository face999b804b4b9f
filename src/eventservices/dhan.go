package eventservices

import "fmt"

const (
	DhanAPIBaseURL  = "https://api.dhan.co"
	DhanFeedBaseURL = "wss://api-feed.dhan.co"
)

// DhanAuth carries the broker credentials every REST call needs. BaseURL is
// overridable for tests.
type DhanAuth struct {
	BaseURL     string
	ClientID    string
	AccessToken string
}

func NewDhanAuth(clientID, accessToken string) *DhanAuth {
	return &DhanAuth{
		BaseURL:     DhanAPIBaseURL,
		ClientID:    clientID,
		AccessToken: accessToken,
	}
}

func (a *DhanAuth) Validate() error {
	if a.ClientID == "" {
		return fmt.Errorf("DhanAuth.Validate: client id not set")
	}

	if a.AccessToken == "" {
		return fmt.Errorf("DhanAuth.Validate: access token not set")
	}

	return nil
}

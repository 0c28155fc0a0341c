package auth

import (
	"fmt"
	"maps"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/fitbit"
	"golang.org/x/oauth2/google"
)

const (
	ProviderFitbit = "fitbit"
	ProviderDrive  = "drive"
)

// DriveAuthURL is Google's v2 authorization endpoint.
const DriveAuthURL = "https://accounts.google.com/o/oauth2/v2/auth"

var (
	DefaultFitbitScopes = []string{"activity", "heartrate", "location", "nutrition", "profile", "settings", "sleep", "social", "weight"}
	DefaultDriveScopes  = []string{"https://www.googleapis.com/auth/drive.file"}
)

// Provider is the OAuth2 client configuration for one third-party service.
type Provider struct {
	Name         string
	DisplayName  string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	Scopes       []string
	// AuthURLParams are extra query parameters for the authorization URL.
	AuthURLParams map[string]string
}

// Fitbit returns the Fitbit provider with its public endpoints.
func Fitbit(clientID, clientSecret string) Provider {
	return Provider{
		Name:         ProviderFitbit,
		DisplayName:  "Fitbit",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthURL:      fitbit.Endpoint.AuthURL,
		TokenURL:     fitbit.Endpoint.TokenURL,
		Scopes:       DefaultFitbitScopes,
	}
}

// Drive returns the Google Drive provider. Google only issues a refresh
// token when offline access is requested and consent is shown.
func Drive(clientID, clientSecret string) Provider {
	return Provider{
		Name:         ProviderDrive,
		DisplayName:  "Google Drive",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthURL:      DriveAuthURL,
		TokenURL:     google.Endpoint.TokenURL,
		Scopes:       DefaultDriveScopes,
		AuthURLParams: map[string]string{
			"access_type": "offline",
			"prompt":      "consent",
		},
	}
}

func (p Provider) oauth2Config(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.AuthURL,
			TokenURL:  p.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		RedirectURL: redirectURL,
		Scopes:      p.Scopes,
	}
}

// Registry holds the configured providers in a fixed order.
type Registry struct {
	order  []string
	byName map[string]Provider
}

// NewRegistry keeps providers in the order given. Names must be unique.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{byName: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p.Name == "" {
			return nil, fmt.Errorf("provider name is required")
		}
		if _, dup := r.byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate provider %q", p.Name)
		}
		if p.ClientID == "" || p.ClientSecret == "" {
			return nil, fmt.Errorf("provider %s: client id and secret are required", p.Name)
		}
		if p.AuthURL == "" || p.TokenURL == "" {
			return nil, fmt.Errorf("provider %s: auth and token URLs are required", p.Name)
		}
		p.AuthURLParams = maps.Clone(p.AuthURLParams)
		r.order = append(r.order, p.Name)
		r.byName[p.Name] = p
	}
	return r, nil
}

// Get looks up a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// All returns the providers in registration order.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

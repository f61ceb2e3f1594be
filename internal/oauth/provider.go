// Package oauth implements the provider side of credential management:
// authorization URLs, code exchange, token refresh, and signed state.
package oauth

// Provider identifies an external integration.
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderAsana     Provider = "asana"
	ProviderFireflies Provider = "fireflies"
)

// Valid reports whether p is a provider connected through OAuth.
// Fireflies uses an API key and has no OAuth flow.
func (p Provider) Valid() bool {
	return p == ProviderGoogle || p == ProviderAsana
}

type endpoints struct {
	authURL  string
	tokenURL string
	userURL  string
	scopes   []string
}

var providerEndpoints = map[Provider]endpoints{
	ProviderGoogle: {
		authURL:  "https://accounts.google.com/o/oauth2/v2/auth",
		tokenURL: "https://oauth2.googleapis.com/token",
		userURL:  "https://www.googleapis.com/oauth2/v2/userinfo",
		scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/calendar",
			"https://www.googleapis.com/auth/gmail.readonly",
			"https://www.googleapis.com/auth/gmail.send",
		},
	},
	ProviderAsana: {
		authURL:  "https://app.asana.com/-/oauth_authorize",
		tokenURL: "https://app.asana.com/-/oauth_token",
		userURL:  "https://app.asana.com/api/1.0/users/me",
		scopes:   []string{"default"},
	},
}

package auth

import (
	"github.com/getevo/evo/v2/lib/settings"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

var MicrosoftOAuthConfig *oauth2.Config

// InitOAuthConfigs builds the Microsoft SSO configuration from settings
func InitOAuthConfigs() {
	var tenant = settings.Get("OAUTH.MICROSOFT.TENANT", "common").String()
	MicrosoftOAuthConfig = &oauth2.Config{
		ClientID:     settings.Get("OAUTH.MICROSOFT.CLIENT_ID").String(),
		ClientSecret: settings.Get("OAUTH.MICROSOFT.SECRET").String(),
		RedirectURL:  settings.Get("APP.BASE_URL", "http://localhost:8080").String() + "/api/auth/oauth/microsoft/callback",
		Scopes: []string{
			"https://graph.microsoft.com/user.read",
		},
		Endpoint: microsoft.AzureADEndpoint(tenant),
	}
}

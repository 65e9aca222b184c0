package oauth

import "github.com/lborres/gatekeep"

// Configured returns the providers whose credentials are complete.
func Configured(google, github Credentials) []gatekeep.IdentityProvider {
	var providers []gatekeep.IdentityProvider
	if google.Configured() {
		providers = append(providers, NewGoogle(google))
	}
	if github.Configured() {
		providers = append(providers, NewGitHub(github))
	}
	return providers
}

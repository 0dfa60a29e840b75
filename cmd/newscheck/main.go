// Command newscheck runs the fake-news detection API.
//
//	@title						Newscheck API
//	@version					1.0
//	@description				Fake-news detection backend: accounts, bearer sessions and text classification.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the access token.
package main

import "github.com/tbourn/go-newscheck-backend/internal/cli"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.Execute(version)
}

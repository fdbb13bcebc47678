// Package cli implements the userkeeper command-line client.
//
// Commands:
//
//	register [-name N] [-email E] [-phone P] -picture FILE
//	get ID
//	picture ID [-o FILE]
//	set-picture ID FILE
//
// Values missing from register flags are prompted for; the password is
// always read from the terminal without echo.
package cli

// Package assertions parses and evaluates step expectations against a
// completed exchange.
//
// Expectations are single lines in a small assertion language:
//
//	status == 200
//	duration < 1500ms
//	body contains Welcome back
//	json user.name == alice
//	header content-type contains text/html
//	form register exists
//	cookie session_id_welcome exists
//	session welcome == 127.0.0.1-abc
//	schema schemas/user.json
//
// Subjects address the exchange (status, duration, body, json paths,
// headers) or the client's scraped state (forms, cookies, sessions).
// JSON paths use gjson syntax; schema files are validated with JSON
// Schema and resolved relative to the walk file's directory.
package assertions

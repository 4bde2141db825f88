// Package http provides HTTP handlers and middleware for the GenMode API.
//
// The router exposes the following endpoints:
//   - POST /auth/signup, POST /auth/token, POST /auth/refresh: issue a session. Bodies are
//     {"email","password","data"}, {"email","password"} and {"refresh_token"}. Responses
//     carry {"access_token","token_type","expires_at","refresh_token","user"} and the
//     access token is also set in the `session_token` cookie.
//   - GET /auth/user, POST /auth/logout: read the current user or revoke the current
//     session. Logout returns 204 No Content and clears the cookie.
//   - GET /personas: the persona catalog.
//   - POST /transform: renders text in a persona. Callers with a valid access token get the
//     result recorded in their history unless "save" is false.
//   - GET /translations, POST /translations: the caller's transformation history.
//   - GET /profiles/{id}, POST /profiles: owner-only profile access.
//   - GET /stats?tz=, GET /dashboard?tz=: usage statistics computed in the given zone.
//   - GET /healthz: store reachability.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http

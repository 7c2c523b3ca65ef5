// Package server provides HTTP routing, middleware, and OAuth handling for the CLI and web interfaces.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [Logging], [Recover] and [Metrics] are the stack used by `crossfade serve`.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so routes like
// "GET /api/{platform}/auth" expose their wildcards through [http.Request.PathValue].
//
// # OAuth Callback Handler
//
// OAuthHandler implements the OAuth2 authorization code callback flow for `crossfade auth login`.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code through the
// platform client, and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server

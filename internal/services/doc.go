// Package services defines the collaborators the watcher talks to and implements them for Spotify and Twilio.
//
// # Playlist Source
//
// [PlaylistSource] is the read side of a music service: a paginated playlist listing for an account,
// a playlist's metadata plus its first page of entries, and subsequent entry pages.
// Continuation tokens are opaque strings; an empty token means the listing is exhausted.
//
// # Spotify Implementation
//
// [SpotifyService] wraps the zmb3/spotify client. Requests are authorized by an [oauth2.Transport] whose token source
// refreshes expired tokens with the saved refresh token. A callback registered with
// [SpotifyService.SetTokenRefreshCallback] sees every new token so it can be written back to config.toml.
//
// [SpotifyService.Token] doubles as the auth collaborator: it yields a valid token or an error wrapping
// [shared.ErrAuthUnavailable], which stops the watch loop.
//
// # Messaging
//
// [TwilioMessenger] sends one text per call through the Twilio REST API. [LogMessenger] logs instead (dry runs).
//
// # Error Handling
//
// Client errors are mapped onto the shared taxonomy:
//   - [shared.ErrAuthUnavailable] : token refresh failed or the API answered 401
//   - [shared.ErrPlaylistNotFound] : the API answered 404
//   - [shared.ErrTransientFetch] : anything else; retried next cycle
//   - [shared.ErrNotificationDelivery] : the messaging provider rejected a send
package services

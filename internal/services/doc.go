// Package services implements the [Service] interface against the works/translation backend.
//
// # REST
//
// [APIService] wraps a plain [http.Client]. Every request carries a fresh X-Request-ID
// (google/uuid) and, when configured, waits on a [rate.Limiter] first.
// Typed methods decode JSON into [models] types; the raw [APIService.Get] and [APIService.Post]
// methods back the `novelx api` debugging commands.
//
// # Server-Sent Events
//
// Streams are opened on a copy of the client with no timeout so long translation runs are not cut off.
// [Stream.Next] yields one [Event] at a time; callers decode the JSON payload with [Event.Decode].
// The prompt lab endpoint streams plain text and is read with [ChunkStream].
//
// # Error Handling
//
// Non-2xx responses become [*APIError], which unwraps to:
//   - [shared.ErrNotFound] : 404
//   - [shared.ErrAPIRequest] : any other status
//
// Transport failures wrap [shared.ErrConnection] or [shared.ErrTimeout]. Input rejected before a request
// is made is a [*ValidationError] wrapping [shared.ErrInvalidInput].
//
// [ErrorMessage] flattens any of these into a display string: server detail verbatim, a generic
// connection message for transport failures, otherwise the caller's fallback.
package services

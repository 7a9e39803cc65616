// Package auth is the session core of the care-coordination client: it turns
// identity provider events and application profiles into a single session
// state, and decides where a screen stack must be redirected based on it.
//
// Session lifecycle:
//   - SessionStore is constructed explicitly and handed to consumers. Start
//     arms the identity provider listener, Close disarms it. Every provider
//     callback is tagged with a sequence number so continuations that finish
//     after a newer callback (or after Close) are dropped.
//   - TransitionSession is the pure transition function behind the store. The
//     store only performs effects (profile lookups, forced sign-outs) and feeds
//     the outcome back as a SessionEvent.
//   - PendingVerification suppresses unverified sessions right after sign-up,
//     so a freshly created provider session does not leak into the UI.
//
// Navigation:
//   - Guard maps the session state and the current route segments to a
//     redirect target. Route groups segregate patient and therapist screens.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter used by SessionStore to
//     describe sign-in, sign-up, sign-out, deletion and forced sign-out events.
//     Sink errors are logged and never block the session flow.
package auth

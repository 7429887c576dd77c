// Package session implements the stateful conversation unit and its
// process-wide registry. A Session exclusively owns its conversation history,
// its bound backends and its routing strategy instance; every turn runs under
// a per-session lock so concurrent sends on the same session serialize
// deterministically while different sessions proceed in parallel. The
// Registry resolves backend configs through an injected factory at creation
// time and exposes the lifecycle verbs the transport layer consumes.
package session

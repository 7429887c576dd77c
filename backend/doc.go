// Package backend defines the uniform contract every model backend satisfies:
// send a message list with sampling parameters and get back a reply carrying
// token, cost and latency metadata; report health; estimate cost for a token
// count. Concrete providers (Anthropic, OpenAI and OpenAI-compatible local
// servers) live in subpackages and are registered with a Factory, which the
// session registry uses to resolve immutable Configs into live backends at
// session-creation time.
package backend

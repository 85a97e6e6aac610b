// Package model defines the provider-agnostic completion contract used by the
// pipeline stages.
//
// A Model returns a response channel and an error channel, so every call is a
// future; Await resolves it under an explicit timeout. A Request may carry a
// Schema, in which case providers ask for a JSON object and callers validate
// the returned text with Schema.Validate. Providers live in the openai and
// anthropic subpackages; MockModel serves tests and Offline answers from
// keyword rules when no provider is configured.
package model

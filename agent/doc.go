// Package agent contains the pipeline stages of a turn:
//
//  1. Guard admits or rejects the turn (fails closed)
//  2. Classifier routes an admitted turn to one specialist (defaults to details)
//  3. Exactly one specialist runs: Details (retrieval augmented answers),
//     OrderTaker (cart state machine) or Recommender (fallback chain)
//
// Stages form a closed set: every stage embeds BaseStage, whose unexported
// marker method keeps other packages from adding variants. Each stage issues
// its model calls through BaseStage, which awaits the model future under a
// timeout and retries at most once (with a stricter instruction for
// structured output) before the stage falls back to its documented default.
package agent

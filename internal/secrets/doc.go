// Package secrets redacts credentials from message text before it is indexed.
//
// Exports often contain keys and tokens pasted into prompts. With scrubbing
// enabled the indexer passes message prose and code through a Scrubber, so
// matches never reach the full-text index. Findings report rule IDs and
// positions only.
package secrets

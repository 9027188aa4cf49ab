// Package conversation turns ChatGPT conversation exports (conversations.json)
// into canonical, linear transcripts.
//
// An export record stores each conversation as a graph of nodes keyed by id.
// Regenerating a reply creates sibling branches, and only the path from the
// record's current node back to the root is the conversation the user saw.
//
// # Architecture
//
// The main components are:
//   - Linearize: walks parent links from the current node to the root
//   - CleanText / SeparateCode: strip citation noise and split fenced code from prose
//   - ParseRecord: builds one Conversation with turn indices 0..n-1
//   - Parser / Export: reads the whole export, then yields conversations lazily
//
// # Usage
//
//	export, err := conversation.NewParser().ParseFile(ctx, "conversations.json")
//	if err != nil {
//	    return err // ErrNotArray, ErrInvalidJSON, I/O errors
//	}
//	err = export.Each(ctx, func(c *conversation.Conversation) error {
//	    return store(c)
//	})
//	stats := export.Stats() // Parsed, Discarded, Failed
//
// # Failure Policy
//
// A record that cannot be decoded is counted in ParseStats.Failed and the pass
// continues. A record with no mapping, no current node or no retained messages
// is counted in ParseStats.Discarded. Only a non-array top level or invalid
// JSON fails the whole parse.
package conversation

package conversation

// Linearize returns the canonical thread of a branching conversation graph:
// the node ids on the path from the root to currentNode, root first.
//
// Only the ancestor chain of currentNode is followed, so sibling branches
// created by regenerated replies are ignored. The walk stops at a node
// without a parent, at an id missing from the mapping, or on a revisit.
// The mapping is never modified.
func Linearize(mapping map[string]Node, currentNode string) []string {
	if len(mapping) == 0 || currentNode == "" {
		return nil
	}

	visited := make(map[string]struct{}, len(mapping))
	path := make([]string, 0, 16)

	for id := currentNode; id != ""; {
		if _, seen := visited[id]; seen {
			break
		}
		node, ok := mapping[id]
		if !ok {
			break
		}
		visited[id] = struct{}{}
		path = append(path, id)
		id = node.ParentID()
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

package domain

// TreeNode is one node of the upstream category tree. Nesting goes through
// Childs to arbitrary depth; only nodes carrying both a name and a url
// address a browsable category.
type TreeNode struct {
	Name   string     `json:"name"`
	URL    string     `json:"url"`
	Shard  string     `json:"shard,omitempty"`
	Query  string     `json:"query,omitempty"`
	Childs []TreeNode `json:"childs,omitempty"`
}

// CategoryNode is a category flattened out of the tree.
type CategoryNode struct {
	Name  string `json:"name"`
	Shard string `json:"shard"`
	URL   string `json:"url"`
	Query string `json:"query"`
}

// ResolvedCategory is a CategoryNode whose query has been extended with the
// listing filters taken from the user's URL. Built once per session and
// read-only afterwards.
type ResolvedCategory struct {
	CategoryNode
}

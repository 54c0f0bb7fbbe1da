package serialize

import "encoding/json"

// DagJSON mirrors spec.md §6.2's dag.json shape.
type DagJSON struct {
	Nodes map[string][]string `json:"nodes"`
	Order []string            `json:"order"`
}

// BuildLogNode is one node's entry in a build log.
type BuildLogNode struct {
	Node    string `json:"node"`
	Path    string `json:"path"`
	Success bool   `json:"success"`
}

// BuildLogJSON mirrors spec.md §6.2's build_log_*.json shape.
type BuildLogJSON struct {
	Timestamp string         `json:"timestamp"`
	Hash      string         `json:"hash"`
	OutPath   string         `json:"out_path"`
	Nodes     []BuildLogNode `json:"nodes"`
}

// Registry is the flat node-name -> artifact-path JSON object spec.md §4.5/
// §6.2 calls "the registry file".
type Registry map[string]string

// MarshalIndent renders v as RFC 8259-compliant indented JSON, the form
// every _pipeline/*.json file uses.
func MarshalIndent(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

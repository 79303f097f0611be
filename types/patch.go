package types

// Patch is a directly fetchable diff URL together with the page or archive
// it was discovered from.
type Patch struct {
	Link         string `json:"patch_link" yaml:"patch_link"`
	ReachingPath string `json:"reaching_path" yaml:"reaching_path"`
}

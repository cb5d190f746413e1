package supervise

import "embed"

// DefaultResource is the bundled default configuration
const DefaultResource = "defaults/supervise.yaml"

//go:embed defaults/supervise.yaml
var defaultResources embed.FS

package version

import (
	"encoding/json"
	"fmt"
	"os"
)

// Version is overridden at link time with -X.
var Version = "0.0.0"

type Info struct {
	Version string `json:"version"`
}

// Load reads a version.json file. A missing file yields the linked Version.
func Load(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Info{Version: Version}, nil
	}
	if err != nil {
		return Info{Version: Version}, fmt.Errorf("read %s: %w", path, err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil || info.Version == "" {
		return Info{Version: Version}, fmt.Errorf("parse %s: invalid version file", path)
	}
	return info, nil
}

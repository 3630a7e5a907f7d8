package sde

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
)

// VersionInfo is the dataset release metadata carried by the meta record
// (`_sde.jsonl`): a build number and a release date.
type VersionInfo struct {
	BuildNumber int64  `json:"buildNumber"`
	ReleaseDate string `json:"releaseDate"`
}

// VersionTag renders the opaque version token used to key snapshots,
// index stores, and changelog entries.
func (v VersionInfo) VersionTag() string {
	return strconv.FormatInt(v.BuildNumber, 10)
}

// ReadVersionInfo parses the first line of the dataset meta file.
func ReadVersionInfo(path string) (VersionInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return VersionInfo{}, err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return VersionInfo{}, err
		}
		return VersionInfo{}, fmt.Errorf("meta file %s is empty", path)
	}

	var info VersionInfo
	if err := jsonLine.Unmarshal(scanner.Bytes(), &info); err != nil {
		return VersionInfo{}, fmt.Errorf("malformed meta record: %w", err)
	}
	if info.BuildNumber == 0 {
		return VersionInfo{}, fmt.Errorf("meta record in %s has no buildNumber", path)
	}
	return info, nil
}

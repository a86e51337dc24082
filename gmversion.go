package gamutmap

import "fmt"

const (
	// Encoded as major*1000 + minor*10 + patch
	VersionEncoded = 1010

	VersionMajor = 1
	VersionMinor = 1
	VersionPatch = 0
)

func Version() string {
	return fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)
}

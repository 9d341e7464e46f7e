package version

import "fmt"

type Version struct {
	MajorNumber int64
	MinorNumber int64
	PatchNumber int64
}

// String renders the version as major.minor.patch
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.MajorNumber, v.MinorNumber, v.PatchNumber)
}

// AppVersion is reported by the version command, the status api and the startup log
var AppVersion = Version{
	MajorNumber: 0,
	MinorNumber: 1,
	PatchNumber: 0,
}

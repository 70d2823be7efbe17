package delta

import "strings"

const deltaSuffix = "delta"

// GetDeltaFilePath derives the delta file path of an *.acdb file.
//
// Without a directory the suffix is appended to the acdb path itself. With a
// directory the result is <dir><sep><basename>delta, where sep is the last
// separator found in the acdb path ('/' when it has none). Separators are not
// normalised.
func GetDeltaFilePath(acdbPath, dir string) string {
	if dir == "" {
		return acdbPath + deltaSuffix
	}
	sep := "/"
	base := acdbPath
	if i := strings.LastIndexAny(acdbPath, `/\`); i >= 0 {
		sep = acdbPath[i : i+1]
		base = acdbPath[i+1:]
	}
	return dir + sep + base + deltaSuffix
}

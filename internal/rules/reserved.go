package rules

import "strings"

var reservedDeviceNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// Whole names SharePoint refuses, compared lower-cased.
var reservedPatterns = map[string]struct{}{
	".lock":       {},
	"desktop.ini": {},
}

const (
	tempFilePrefix = "~$"
	vtiMarker      = "_vti_"
)

// IsReservedName reports whether name is a Windows device name or a file
// SharePoint reserves for its own use.
func IsReservedName(name string) bool {
	stem, _ := splitExt(name)
	if _, ok := reservedDeviceNames[strings.ToUpper(stem)]; ok {
		return true
	}

	lower := strings.ToLower(name)
	if _, ok := reservedPatterns[lower]; ok {
		return true
	}
	if strings.HasPrefix(name, tempFilePrefix) {
		return true
	}
	return strings.Contains(lower, vtiMarker)
}

// splitExt splits name into stem and extension. Leading dots belong to the
// stem, so ".lock" has no extension.
func splitExt(name string) (string, string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, ""
	}
	if strings.TrimLeft(name[:i], ".") == "" {
		return name, ""
	}
	return name[:i], name[i:]
}

// Ext returns the lower-cased extension of name including the dot
func Ext(name string) string {
	_, ext := splitExt(name)
	return strings.ToLower(ext)
}

package utils

import "strings"

// NvlString returns first not empty string value from varargs
//
// return "" if all strings are empty
func NvlString(args ...string) string {
	for _, str := range args {
		if str != "" {
			return str
		}
	}
	return ""
}

// JoinNonEmptyStrings joins strings with separator, skipping empty strings
func JoinNonEmptyStrings(sep string, elems ...string) string {
	nonEmpty := make([]string, 0, len(elems))
	for _, elem := range elems {
		if elem != "" {
			nonEmpty = append(nonEmpty, elem)
		}
	}
	return strings.Join(nonEmpty, sep)
}

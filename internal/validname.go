package internal

import (
	"regexp"
	"strings"
)

const (
	// A valid name must start with a letter, digit or underscore.
	// It may contain any character after that except control and slash.
	pattern = `^[\pL\pN_][^\pC/]*$`
	// It may not end with a whitespace character.
	antiPattern = `\pZ$`

	// ReservedPrefix starts names the storage layer keeps for itself
	// (label sub-arrays, engine bookkeeping).
	ReservedPrefix = "__"
)

var (
	re     *regexp.Regexp
	antiRe *regexp.Regexp
)

func init() {
	var err error
	re, err = regexp.Compile(pattern)
	if err != nil {
		panic(err)
	}
	antiRe, err = regexp.Compile(antiPattern)
	if err != nil {
		panic(err)
	}
}

// IsValidName returns true if name can be used for a group, array,
// dimension or attribute.
func IsValidName(name string) bool {
	return re.MatchString(name) && !antiRe.MatchString(name) &&
		!strings.HasPrefix(name, ReservedPrefix)
}

// JoinFullName builds the path of a child given its parent's full name.
func JoinFullName(parent, name string) string {
	if parent == "" || parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

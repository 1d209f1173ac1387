// Package deps reports whether the external programs cavacolor drives are
// installed.
package deps

//go:build !darwin

package clipboard

// Frontmost has no portable implementation outside macOS.
var Frontmost = Unknown

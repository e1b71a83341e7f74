// Package textutil sanitizes user-supplied names before they become file
// names.
package textutil

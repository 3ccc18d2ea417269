//go:build release

package consts

const (
	Debug   = false
	Release = true
)

//go:build !unix

package store

import "errors"

var syscallNotDir = errors.New("not a directory")

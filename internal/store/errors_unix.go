//go:build unix

package store

import "syscall"

var syscallNotDir error = syscall.ENOTDIR

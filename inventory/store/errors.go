package store

import "errors"

// errMissingHeader is a programming error: a line was written before its header.
var errMissingHeader = errors.New("memory store: line references unknown header")

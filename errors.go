package jalloc

import "errors"

var ErrOutOfMemory = errors.New("jalloc.outofmemory")
var ErrInvalidSize = errors.New("jalloc.invalidsize")
var ErrInvalidPointer = errors.New("jalloc.invalidpointer")
var ErrCorruptHeader = errors.New("jalloc.corruptheader")
var ErrConfigMissing = errors.New("config.missing")
var ErrConfigNoString = errors.New("config.nostring")
var ErrConfigNoNumber = errors.New("config.nonumber")
var ErrConfigNoBool = errors.New("config.nobool")

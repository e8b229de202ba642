package jalloc

import s "github.com/prataprc/gosettings"

// MaxPoolsPerClass mirrors poolmgr.MaxPoolsPerClass as a tunable default,
// duplicated here (rather than imported) so it can be overridden per
// Settings without poolmgr needing to know about configuration at all.
const MaxPoolsPerClass = 8

// ThreadCacheCapacity mirrors threadcache.Capacity as a tunable default.
const ThreadCacheCapacity = 32

// LargeCacheCeiling mirrors largecache.TotalCeiling as a tunable default.
const LargeCacheCeiling = int64(64 * 1024 * 1024)

// Defaultsettings returns jalloc's configurable parameters and their
// defaults, grounded on the teacher's malloc.Defaultsettings.
//
// "threadcache.capacity" (int64, default: 32)
//		Depth of each size class's per-thread LIFO reuse stack.
//
// "largecache.ceiling" (int64, default: 64MiB)
//		Total bytes the process-wide large-block cache may retain.
//
// "poolmgr.maxpools" (int64, default: 8)
//		Maximum simultaneously active pools per size class, per thread.
//
// "log.level" (string, default: "info")
//		SetLogger's log level key.
func Defaultsettings() s.Settings {
	return s.Settings{
		"threadcache.capacity": int64(ThreadCacheCapacity),
		"largecache.ceiling":   LargeCacheCeiling,
		"poolmgr.maxpools":     int64(MaxPoolsPerClass),
		"log.level":            "info",
	}
}

// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

package fdtblob

import "fmt"

// Status is an FDT operation status code, returned by every primitive
// and pipeline stage instead of panicking. It implements error so
// callers can compare it directly, or via errors.Is once wrapped with
// extra context.
type Status int

const (
	StatusBadMagic Status = iota + 1
	StatusBadVersion
	StatusBadState
	StatusBadStructure
	StatusBadValue
	StatusBadOffset
	StatusBadPath
	StatusBadPhandle
	StatusBadOverlay
	StatusNoPhandles
	StatusNoSpace
	StatusNotFound
	StatusExists
	StatusInternal
)

var statusText = map[Status]string{
	StatusBadMagic:     "bad magic",
	StatusBadVersion:   "bad version",
	StatusBadState:     "bad state",
	StatusBadStructure: "bad structure",
	StatusBadValue:     "bad value",
	StatusBadOffset:    "bad offset",
	StatusBadPath:      "bad path",
	StatusBadPhandle:   "bad phandle",
	StatusBadOverlay:   "bad overlay",
	StatusNoPhandles:   "no phandles left",
	StatusNoSpace:      "no space",
	StatusNotFound:     "not found",
	StatusExists:       "already exists",
	StatusInternal:     "internal error",
}

func (s Status) Error() string {
	if t, ok := statusText[s]; ok {
		return t
	}
	return fmt.Sprintf("fdt: unknown status %d", int(s))
}

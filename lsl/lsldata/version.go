// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsldata

import (
	"fmt"

	"go.chromium.org/luci/common/errors"
)

// versionMarker precedes the three version bytes in the header.
const versionMarker byte = 'v'

// VersionEncodedLen is the wire size of the version marker plus the
// version triple.
const VersionEncodedLen = 4

// Version is the format version stamped into every archive header.
type Version struct {
	Major byte
	Minor byte
	Patch byte
}

// CurrentVersion is the format version this implementation writes.
func CurrentVersion() Version {
	return Version{Major: 1, Minor: 1, Patch: 0}
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Encode returns the version marker followed by the version triple.
func (v Version) Encode() []byte {
	return []byte{versionMarker, v.Major, v.Minor, v.Patch}
}

// DecodeVersion consumes exactly VersionEncodedLen bytes.
func DecodeVersion(b []byte) (Version, error) {
	if len(b) != VersionEncodedLen {
		return Version{}, errors.Reason("version field is %d bytes, want %d", len(b), VersionEncodedLen).Err()
	}
	if b[0] != versionMarker {
		return Version{}, errors.Reason("missing version marker: got 0x%02x, want 0x%02x", b[0], versionMarker).Err()
	}
	return Version{Major: b[1], Minor: b[2], Patch: b[3]}, nil
}

// CompatibleWith returns nil iff an archive written at version v can be
// read by an implementation at version cur. Major versions must match
// exactly; the archive's minor version must not exceed cur's, since
// a newer minor may use format features cur does not know. Patch is
// ignored.
func (v Version) CompatibleWith(cur Version) error {
	switch {
	case v.Major > cur.Major:
		return errors.Reason("archive format %s is too new for this reader (%s)", v, cur).Err()
	case v.Major < cur.Major:
		return errors.Reason("archive format %s is too old for this reader (%s)", v, cur).Err()
	case v.Minor > cur.Minor:
		return errors.Reason("archive uses format %s features; this reader supports up to %s", v, cur).Err()
	}
	return nil
}

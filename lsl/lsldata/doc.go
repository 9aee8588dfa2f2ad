// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package lsldata implements IO routines for reading and writing the
// pieces of the LUSL archive format: the header, per-entry metadata
// records, content checksums, the chunked stream cipher, the whole-file
// compression adapter, and the pull-buffer used to parse an archive from
// a source with arbitrary read boundaries.
package lsldata

// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package lsl serializes a directory tree into a LUSL archive and
// restores archives back into directory trees. The wire codec lives in
// the lsldata subpackage; this package owns the writer and reader
// state machines and the option surface.
package lsl

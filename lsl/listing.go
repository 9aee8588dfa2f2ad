// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsl

import (
	"io/fs"
	"path/filepath"
	"strings"

	"go.chromium.org/luci/common/errors"
)

// ListFiles returns every regular file under root, in WalkDir
// (lexicographic per directory) order. Files and directories whose
// name starts with a dot are skipped. The format does not mandate any
// particular entry order; this one is simply stable for a given tree.
func ListFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Annotate(err, "listing %q", root).Err()
	}
	return files, nil
}

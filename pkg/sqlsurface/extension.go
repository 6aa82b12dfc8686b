// SPDX-License-Identifier: Apache-2.0

package sqlsurface

import (
	"path/filepath"
	"strings"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwschema"
)

// ParseExtension derives an Extension from its filename (without extension,
// that is the extension name) and any leading `-- version: X` / `-- schema:
// Y` comment lines.
func ParseExtension(path, body string) gwschema.Extension {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	ext := gwschema.Extension{Name: name}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "--") {
			if line != "" {
				break
			}
			continue
		}
		comment := strings.TrimSpace(strings.TrimPrefix(line, "--"))
		switch {
		case strings.HasPrefix(comment, "version:"):
			ext.Version = strings.TrimSpace(strings.TrimPrefix(comment, "version:"))
		case strings.HasPrefix(comment, "schema:"):
			ext.Schema = strings.TrimSpace(strings.TrimPrefix(comment, "schema:"))
		}
	}
	return ext
}

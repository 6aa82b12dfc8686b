// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwerrors"
)

//go:embed schema/platform.schema.json schema/bundle_manifest.schema.json
var schemaFS embed.FS

const (
	platformSchemaURL = "schema/platform.schema.json"
	manifestSchemaURL = "schema/bundle_manifest.schema.json"
)

var platformSchema, manifestSchema *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	for _, url := range []string{platformSchemaURL, manifestSchemaURL} {
		raw, err := schemaFS.ReadFile(url)
		if err != nil {
			panic(fmt.Sprintf("registry: embedded schema %s missing: %v", url, err))
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			panic(fmt.Sprintf("registry: embedded schema %s invalid: %v", url, err))
		}
		if err := c.AddResource(url, doc); err != nil {
			panic(fmt.Sprintf("registry: adding schema resource %s: %v", url, err))
		}
	}

	var err error
	platformSchema, err = c.Compile(platformSchemaURL)
	if err != nil {
		panic(fmt.Sprintf("registry: compiling %s: %v", platformSchemaURL, err))
	}
	manifestSchema, err = c.Compile(manifestSchemaURL)
	if err != nil {
		panic(fmt.Sprintf("registry: compiling %s: %v", manifestSchemaURL, err))
	}
}

// validateJSON validates raw against schema, wrapping any failure as a
// RegistryCorrupt error so callers see the gateway's own error taxonomy
// instead of jsonschema's.
func validateJSON(schema *jsonschema.Schema, path string, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return gwerrors.RegistryCorrupt{Path: path, Reason: err.Error()}
	}
	if err := schema.Validate(v); err != nil {
		return gwerrors.RegistryCorrupt{Path: path, Reason: err.Error()}
	}
	return nil
}

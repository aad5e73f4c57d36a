package inbox

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON schema of a batch file, for segmenter authors.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
	}
	s := r.Reflect(&Batch{})
	s.Title = "slotwise batch"
	return json.MarshalIndent(s, "", "  ")
}

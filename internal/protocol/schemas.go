package protocol

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "mem://protocol/"

// Validator checks inbound messages and saved state documents against the
// embedded JSON schemas.
type Validator struct {
	hello *jsonschema.Schema
	cmd   *jsonschema.Schema
	state *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	names := []string{"hello.schema.json", "cmd.schema.json", "state.schema.json"}
	for _, n := range names {
		b, err := schemaFS.ReadFile("schemas/" + n)
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBase+n, bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", n, err)
		}
	}
	var v Validator
	for i, dst := range []**jsonschema.Schema{&v.hello, &v.cmd, &v.state} {
		s, err := c.Compile(schemaBase + names[i])
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", names[i], err)
		}
		*dst = s
	}
	return &v, nil
}

func (v *Validator) Hello(raw []byte) error { return validate(v.hello, raw) }
func (v *Validator) Cmd(raw []byte) error   { return validate(v.cmd, raw) }
func (v *Validator) State(raw []byte) error { return validate(v.state, raw) }

func validate(s *jsonschema.Schema, raw []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return s.Validate(doc)
}

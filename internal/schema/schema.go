// Package schema validates on-disk documents against embedded CUE
// definitions. Validation is advisory: callers log violations and keep
// going, so a hand-edited document degrades to a warning instead of
// blocking the load.
package schema

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed meta.cue
var metaSource string

var (
	metaOnce   sync.Once
	metaSchema cue.Value
	metaErr    error
)

func sessionMetaSchema() (cue.Value, error) {
	metaOnce.Do(func() {
		ctx := cuecontext.New()
		v := ctx.CompileString(metaSource, cue.Filename("meta.cue"))
		if err := v.Err(); err != nil {
			metaErr = fmt.Errorf("compile meta schema: %w", err)
			return
		}
		metaSchema = v.LookupPath(cue.ParsePath("#SessionMeta"))
		if err := metaSchema.Err(); err != nil {
			metaErr = fmt.Errorf("lookup #SessionMeta: %w", err)
		}
	})
	return metaSchema, metaErr
}

// ValidateSessionMeta checks a _meta.json document against the session
// bundle schema.
func ValidateSessionMeta(doc []byte) error {
	schema, err := sessionMetaSchema()
	if err != nil {
		return err
	}
	expr, err := cuejson.Extract("_meta.json", doc)
	if err != nil {
		return fmt.Errorf("session meta: %w", err)
	}
	data := schema.Context().BuildExpr(expr)
	if err := data.Err(); err != nil {
		return fmt.Errorf("session meta: %w", err)
	}
	if err := schema.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("session meta: %w", err)
	}
	return nil
}

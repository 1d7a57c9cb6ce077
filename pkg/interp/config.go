package interp

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Config carries the shell-wide tunables spec.md §2.4 asks for: default IFS,
// the PS1/PS2 prompt strings, and whether a SIGINT delivered to a running
// foreground pipeline aborts it. Grounded on honeyssh's
// core/config.Configuration, validated the same way
// (Configuration.Validate's validator.New()/validate.Struct call).
type Config struct {
	IFS            string `validate:"required"`
	PS1            string `validate:"required"`
	PS2            string `validate:"required"`
	SIGINTAborts   bool
}

// DefaultConfig mirrors a freshly started interactive bash: space/tab/
// newline field splitting, `$ `/`> ` prompts, SIGINT aborts the running
// pipeline rather than killing the shell.
func DefaultConfig() *Config {
	return &Config{
		IFS:          " \t\n",
		PS1:          "$ ",
		PS2:          "> ",
		SIGINTAborts: true,
	}
}

// Validate checks Config the way honeyssh's Configuration.Validate does:
// validator.New() with a tag-name func so error messages name the struct
// field, not "Field0".
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return validate.Struct(c)
}

// Apply seeds env's IFS from Config. PS1 is read directly by cmd/shell's
// driver loop rather than copied onto Env, since prompting is a driver
// concern (SPEC_FULL.md §2.1), not an executor one; PS2 and SIGINTAborts
// are not read anywhere.
func (c *Config) Apply(env *Env) {
	env.ifs = c.IFS
}

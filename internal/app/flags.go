package app

import (
	"github.com/spf13/pflag"
)

// FromFlags loads the App using the global flags registered on the root
// command. Missing flags are treated as unset.
func FromFlags(fs *pflag.FlagSet) (*App, error) {
	return Load(OverridesFromFlags(fs))
}

// OverridesFromFlags reads --db, --provider, --model, --verbose and --json.
func OverridesFromFlags(fs *pflag.FlagSet) Overrides {
	var o Overrides
	o.DBPath, _ = fs.GetString("db")
	o.Provider, _ = fs.GetString("provider")
	o.Model, _ = fs.GetString("model")
	o.Verbose, _ = fs.GetBool("verbose")
	o.JSON, _ = fs.GetBool("json")
	return o
}

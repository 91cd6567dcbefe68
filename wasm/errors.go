package wasm

// A ValidationError reports a structural rule violated by a module. The
// decoder produces these for rules it can see while reading bytes; the
// validate package produces the rest.
type ValidationError string

func (e ValidationError) Error() string {
	return "wasm: " + string(e)
}

package validate

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strandjs/wasm/wasm"
	"github.com/strandjs/wasm/wasm/validate"
)

func Command() *cobra.Command {
	command := &cobra.Command{
		Use:   "validate [paths to modules]",
		Short: "Validate WebAssembly modules",
		Long:  "Decode and validate WebAssembly modules, reporting the first error in each",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("expected at least one argument")
			}

			failed := false
			for _, path := range args {
				if err := validateFile(path); err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
					failed = true
					continue
				}
				fmt.Printf("%s: ok\n", path)
			}
			if failed {
				return errors.New("validation failed")
			}
			return nil
		},
	}

	return command
}

func validateFile(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m, err := wasm.DecodeModule(buf)
	if err != nil {
		return err
	}
	return validate.ValidateModule(m)
}

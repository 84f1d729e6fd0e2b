// Command subleq-ld links one or more SUBLEQ-family relocatable object
// files into a single memory image.
//
// Generalizes the teacher's main.go flag surface (arch/os/output/
// verbose flags parsed with the standard flag package, then dispatched
// into CompileC67WithOptions) into a single leaf cobra.Command{Use,
// Short, RunE} with its own flags and no subcommands, the way the rest
// of the example pack structures a CLI command, since the teacher
// itself never wires a CLI framework and the pack elsewhere does.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xyproto/subleqld/internal/diag"
	"github.com/xyproto/subleqld/internal/link"
	"github.com/xyproto/subleqld/internal/logx"
	"github.com/xyproto/subleqld/internal/mif"
	"github.com/xyproto/subleqld/internal/objfile"
	"github.com/xyproto/subleqld/internal/profile"
)

var (
	profileFlag  string
	execFlag     bool
	memWordsFlag uint64
	verboseFlag  bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "subleq-ld <obj1> [obj2 ...] <out>",
		Short:         "Static linker for SUBLEQ-family object files",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	cmd.Flags().StringVar(&profileFlag, "profile", "32a", "machine profile: 32a, 32b, hybrid, 64")
	cmd.Flags().BoolVar(&execFlag, "exec", false, "profile-hybrid only: prepend the startup stub and emit a full executable")
	cmd.Flags().Uint64Var(&memWordsFlag, "mem-words", profile.DefaultMemWords, "MEM_WORDS, must be a power of two")
	cmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "verbose logging")
	return cmd
}

// exitCodeFor maps an error to a process exit code. Insufficient
// arguments is the one deliberate exception to "any error is nonzero"
// (spec §4.6: "prints a usage message and exits 0, matching source
// behavior").
func exitCodeFor(err error) int {
	if err == errUsage {
		return 0
	}
	return 1
}

var errUsage = fmt.Errorf("usage")

func run(cmd *cobra.Command, args []string) error {
	logger := logx.New(os.Stderr, verboseFlag)

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, cmd.UsageString())
		return errUsage
	}

	variant, err := profile.ParseVariant(profileFlag)
	if err != nil {
		return err
	}
	if execFlag && variant != profile.VariantHybrid {
		return fmt.Errorf("--exec is only valid with --profile hybrid")
	}

	inputs := args[:len(args)-1]
	out := args[len(args)-1]

	machine, err := profile.NewMachine(variant, memWordsFlag)
	if err != nil {
		return err
	}

	if variant == profile.Variant64 {
		return runProfile64(logger, machine, inputs, out)
	}
	return runProfile32(logger, machine, variant, inputs, out)
}

func runProfile32(logger *slog.Logger, machine profile.Machine, variant profile.Variant, inputs []string, out string) error {
	files := make([]*objfile.ObjectFile32, 0, len(inputs))
	for _, path := range inputs {
		of, err := readObjectFile32(path, variant)
		if err != nil {
			return err
		}
		logger.Debug("read object file", "path", path, "words", of.Mem.Len())
		files = append(files, of)
	}

	executable := variant != profile.VariantHybrid || execFlag

	ld := link.NewLinker32(machine, variant, files, executable)
	result, err := ld.Link(executable)
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	switch {
	case variant == profile.VariantHybrid && !execFlag:
		merged := mergedObjectFile32(variant, result)
		return writeFile(out, merged.WriteObjectFile32)
	case variant == profile.VariantHybrid:
		merged := mergedObjectFile32(variant, result)
		if err := writeFile(out, merged.WriteObjectFile32); err != nil {
			return err
		}
		return mif.Write32(out+".mif", machine.MemWords, result.Image)
	default:
		return mif.Write32(out, machine.MemWords, result.Image)
	}
}

func runProfile64(logger *slog.Logger, machine profile.Machine, inputs []string, out string) error {
	files := make([]*objfile.ObjectFile64, 0, len(inputs))
	for _, path := range inputs {
		of, err := readObjectFile64(path)
		if err != nil {
			return err
		}
		logger.Debug("read object file", "path", path, "words", of.Mem.Len())
		files = append(files, of)
	}

	ld := link.NewLinker64(machine, files, true)
	result, err := ld.Link(true)
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	return mif.Write64(out, machine.MemWords, result.Image)
}

func readObjectFile32(path string, variant profile.Variant) (*objfile.ObjectFile32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, diag.IOf(path, err)
	}
	defer f.Close()
	return objfile.ReadObjectFile32(f, path, variant)
}

func readObjectFile64(path string) (*objfile.ObjectFile64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, diag.IOf(path, err)
	}
	defer f.Close()
	return objfile.ReadObjectFile64(f, path)
}

// mergedObjectFile32 packages a hybrid link result back into the same
// on-disk shape the Driver reads, so a non-exec run's output can be fed
// straight back into a later subleq-ld invocation.
func mergedObjectFile32(variant profile.Variant, result *link.Result32) *objfile.ObjectFile32 {
	imported := make(map[string][]uint32, len(result.Unresolved))
	for name, sites := range result.Unresolved {
		imported[name] = sites
	}
	return &objfile.ObjectFile32{
		Path:     "(linked)",
		Variant:  variant,
		Exported: result.Symbols,
		Imported: imported,
		Relative: result.Relatives,
		Mem:      objfile.NewImage32(result.Image),
	}
}

// writeFile routes the object-file write through the same atomic
// temp-file-then-rename helper internal/mif uses for its output, so a
// failure partway through never leaves a truncated object file at path.
func writeFile(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return diag.IOf(path, err)
		}
	}
	return mif.WriteAtomic(path, write)
}

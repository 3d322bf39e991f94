package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-stepio/catalog"
	"github.com/robert-malhotra/go-stepio/internal/dtype"
	"github.com/robert-malhotra/go-stepio/stepio"
)

var dumpStepFlag int

var dumpCmd = &cobra.Command{
	Use:   "dump <dataset> <variable>",
	Short: "Print the values of a variable, block by block",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name, variable := args[0], args[1]

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		kind, err := variableKind(ctx, cat, name, variable)
		if err != nil {
			return err
		}
		opts, err := engineOptions(ctx, cat)
		if err != nil {
			return err
		}

		s := stepio.NewSession(opts...)
		defer s.Close(ctx)
		r, err := s.Open(ctx, name, stepio.ModeRead)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for {
			st, err := r.BeginStep(ctx, stepio.StepNext, 0)
			if err != nil {
				return err
			}
			if st != stepio.StepOK {
				return nil
			}
			step, err := r.CurrentStep()
			if err != nil {
				return err
			}
			if dumpStepFlag < 0 || step == dumpStepFlag {
				if err := dumpKind(out, r, kind, variable, step); err != nil {
					return err
				}
			}
			if err := r.EndStep(ctx); err != nil {
				return err
			}
			if dumpStepFlag >= 0 && step >= dumpStepFlag {
				return nil
			}
		}
	},
}

func init() {
	dumpCmd.Flags().IntVar(&dumpStepFlag, "step", -1, "Only this step (default all)")
}

func variableKind(ctx context.Context, cat catalog.Catalog, name, variable string) (dtype.Kind, error) {
	defs, err := cat.Variables(ctx, name)
	if err != nil {
		return dtype.Invalid, err
	}
	for _, d := range defs {
		if d.Name == variable {
			return d.Type, nil
		}
	}
	return dtype.Invalid, fmt.Errorf("variable %q not found in %q", variable, name)
}

func dumpKind(w io.Writer, e *stepio.Engine, kind dtype.Kind, variable string, step int) error {
	switch kind {
	case dtype.Int8:
		return dumpStep[int8](w, e, variable, step)
	case dtype.Int16:
		return dumpStep[int16](w, e, variable, step)
	case dtype.Int32:
		return dumpStep[int32](w, e, variable, step)
	case dtype.Int64:
		return dumpStep[int64](w, e, variable, step)
	case dtype.Uint8:
		return dumpStep[uint8](w, e, variable, step)
	case dtype.Uint16:
		return dumpStep[uint16](w, e, variable, step)
	case dtype.Uint32:
		return dumpStep[uint32](w, e, variable, step)
	case dtype.Uint64:
		return dumpStep[uint64](w, e, variable, step)
	case dtype.Float32:
		return dumpStep[float32](w, e, variable, step)
	case dtype.Float64:
		return dumpStep[float64](w, e, variable, step)
	case dtype.Complex64:
		return dumpStep[complex64](w, e, variable, step)
	case dtype.Complex128:
		return dumpStep[complex128](w, e, variable, step)
	case dtype.String:
		return dumpStep[string](w, e, variable, step)
	}
	return fmt.Errorf("variable %q has unsupported type %s", variable, kind)
}

// dumpStep prints every block of variable in the active step. Global
// array blocks are read by selecting their box, the others by block
// index.
func dumpStep[T stepio.Element](w io.Writer, e *stepio.Engine, variable string, step int) error {
	v, err := stepio.InquireVariable[T](e, variable)
	if err != nil {
		return err
	}
	blocks, err := stepio.BlocksInfo(e, v, step)
	if err != nil {
		return err
	}

	var data []T
	for i, b := range blocks {
		if v.ShapeKind() == catalog.ShapeGlobalArray {
			err = v.SetSelection(b.Start, b.Count)
		} else {
			err = v.SetBlockSelection(i)
		}
		if err != nil {
			return err
		}
		if err := stepio.GetInto(e, v, &data, stepio.Sync); err != nil {
			return err
		}
		where := ""
		if len(b.Start) > 0 {
			where = " @" + formatDims(b.Start)
		}
		fmt.Fprintf(w, "step %d writer %d block %d%s: %v\n", step, b.WriterID, b.BlockID, where, data)
	}
	return nil
}

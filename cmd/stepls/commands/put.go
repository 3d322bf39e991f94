package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-stepio/internal/dtype"
	"github.com/robert-malhotra/go-stepio/stepio"
)

var (
	putType  string
	putRank  int
	putValue bool
)

var putCmd = &cobra.Command{
	Use:   "put <dataset> <variable> <values>...",
	Short: "Append one step holding the given values",
	Long: `put appends one step to a dataset. The values form a local array of
the given type, or a single value with --value.

With engine.writers > 1 in the configuration, every rank has to put before
the step becomes visible.`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name, variable, raw := args[0], args[1], args[2:]
		if putValue && len(raw) != 1 {
			return fmt.Errorf("--value takes exactly one value, got %d", len(raw))
		}
		kind, err := dtype.ParseKind(putType)
		if err != nil {
			return err
		}

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		opts, err := engineOptions(ctx, cat)
		if err != nil {
			return err
		}
		opts = append(opts, stepio.WithRank(putRank, cfg.Engine.Writers))

		s := stepio.NewSession(opts...)
		defer s.Close(ctx)
		w, err := s.Open(ctx, name, stepio.ModeAppend)
		if err != nil {
			return err
		}

		if _, err := w.BeginStep(ctx, stepio.StepNext, 0); err != nil {
			return err
		}
		step, err := w.CurrentStep()
		if err != nil {
			return err
		}
		if err := putKind(w, kind, variable, raw, putValue); err != nil {
			return err
		}
		if err := w.Close(ctx, stepio.AllTransports); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d %s value(s) to %s/%s in step %d\n", len(raw), kind, name, variable, step)
		return nil
	},
}

func init() {
	putCmd.Flags().StringVarP(&putType, "type", "t", "float64", "Element type")
	putCmd.Flags().IntVar(&putRank, "rank", 0, "Writer rank")
	putCmd.Flags().BoolVar(&putValue, "value", false, "Write a single value instead of an array")
}

func putKind(e *stepio.Engine, kind dtype.Kind, variable string, raw []string, value bool) error {
	switch kind {
	case dtype.Int8:
		return putStep[int8](e, variable, raw, value)
	case dtype.Int16:
		return putStep[int16](e, variable, raw, value)
	case dtype.Int32:
		return putStep[int32](e, variable, raw, value)
	case dtype.Int64:
		return putStep[int64](e, variable, raw, value)
	case dtype.Uint8:
		return putStep[uint8](e, variable, raw, value)
	case dtype.Uint16:
		return putStep[uint16](e, variable, raw, value)
	case dtype.Uint32:
		return putStep[uint32](e, variable, raw, value)
	case dtype.Uint64:
		return putStep[uint64](e, variable, raw, value)
	case dtype.Float32:
		return putStep[float32](e, variable, raw, value)
	case dtype.Float64:
		return putStep[float64](e, variable, raw, value)
	case dtype.Complex64:
		return putStep[complex64](e, variable, raw, value)
	case dtype.Complex128:
		return putStep[complex128](e, variable, raw, value)
	case dtype.String:
		return putStep[string](e, variable, raw, value)
	}
	return fmt.Errorf("unsupported type %s", kind)
}

func putStep[T stepio.Element](e *stepio.Engine, variable string, raw []string, value bool) error {
	data, err := parseValues[T](raw)
	if err != nil {
		return err
	}

	var count []uint64
	if !value {
		count = []uint64{uint64(len(data))}
	}
	v, err := stepio.DefineVariable[T](e, variable, nil, nil, count)
	if err != nil {
		return err
	}
	return stepio.Put(e, v, data, stepio.Sync)
}

// parseValues parses command line values. Strings are taken verbatim.
func parseValues[T stepio.Element](raw []string) ([]T, error) {
	out := make([]T, len(raw))
	for i, s := range raw {
		if p, ok := any(&out[i]).(*string); ok {
			*p = s
			continue
		}
		if _, err := fmt.Sscan(s, &out[i]); err != nil {
			return nil, fmt.Errorf("value %d %q: %w", i, s, err)
		}
	}
	return out, nil
}

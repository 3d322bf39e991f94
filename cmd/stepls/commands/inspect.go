package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-stepio/catalog"
	"github.com/robert-malhotra/go-stepio/internal/dtype"
)

var stepsCmd = &cobra.Command{
	Use:   "steps <dataset>",
	Short: "List the complete steps of a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := args[0]

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		st, err := cat.Status(ctx, name)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printPairs(out, [][2]string{
			{"Dataset", name},
			{"Writers", strconv.Itoa(st.Writers)},
			{"Steps", strconv.Itoa(len(st.Steps))},
			{"Settled", strconv.Itoa(st.Settled)},
			{"Finished", strconv.FormatBool(st.Finished)},
		})
		if len(st.Steps) == 0 {
			return nil
		}

		fmt.Fprintln(out)
		rows := make([][]string, 0, len(st.Steps))
		for _, step := range st.Steps {
			blocks, err := cat.Step(ctx, name, step)
			if err != nil {
				return err
			}
			vars := map[string]bool{}
			var names []string
			for _, b := range blocks {
				if !vars[b.Variable] {
					vars[b.Variable] = true
					names = append(names, b.Variable)
				}
			}
			rows = append(rows, []string{strconv.Itoa(step), strconv.Itoa(len(blocks)), strings.Join(names, ",")})
		}
		printTable(out, []string{"Step", "Blocks", "Variables"}, rows)
		return nil
	},
}

var varsCmd = &cobra.Command{
	Use:   "vars <dataset>",
	Short: "List the variables of a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		defs, err := cat.Variables(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(defs))
		for _, d := range defs {
			ops := d.Operators
			if ops == "" {
				ops = "-"
			}
			rows = append(rows, []string{
				d.Name, d.Type.String(), d.Shape.String(), formatDims(d.Dims),
				strconv.FormatBool(d.Constant), ops,
			})
		}
		printTable(cmd.OutOrStdout(), []string{"Name", "Type", "Shape", "Dims", "Constant", "Operators"}, rows)
		return nil
	},
}

var blocksCmd = &cobra.Command{
	Use:   "blocks <dataset> <variable>",
	Short: "List the blocks of a variable in every step",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name, variable := args[0], args[1]

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		st, err := cat.Status(ctx, name)
		if err != nil {
			return err
		}
		var rows [][]string
		for _, step := range st.Steps {
			blocks, err := cat.Step(ctx, name, step)
			if err != nil {
				return err
			}
			for _, b := range blocks {
				if b.Variable != variable {
					continue
				}
				rows = append(rows, blockRow(b))
			}
		}
		if len(rows) == 0 {
			return fmt.Errorf("no blocks of %q in %q", variable, name)
		}
		printTable(cmd.OutOrStdout(),
			[]string{"Step", "Writer", "Block", "Start", "Count", "Min", "Max", "Locators"}, rows)
		return nil
	},
}

func blockRow(b catalog.Block) []string {
	locs := make([]string, len(b.Locators))
	for i, l := range b.Locators {
		locs[i] = l.String()
	}
	return []string{
		strconv.Itoa(b.Step),
		strconv.Itoa(b.WriterID),
		strconv.Itoa(b.BlockID),
		formatDims(b.Start),
		formatDims(b.Count),
		dtype.FormatValue(b.Type, b.Min),
		dtype.FormatValue(b.Type, b.Max),
		strings.Join(locs, " "),
	}
}

func formatDims(d []uint64) string {
	if len(d) == 0 {
		return "-"
	}
	parts := make([]string, len(d))
	for i, x := range d {
		parts[i] = strconv.FormatUint(x, 10)
	}
	return strings.Join(parts, "x")
}

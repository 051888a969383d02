package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fjod/quickmarket/internal/domain"
	"github.com/fjod/quickmarket/internal/logistics"
	"github.com/spf13/cobra"
)

type FeesOptions struct {
	HeavyKg   int
	OtherKg   int
	GrindKg   int
	Packaging string
}

type FeesResult struct {
	Logistics int64 `json:"logistics"`
	Packaging int64 `json:"packaging"`
	Grinding  int64 `json:"grinding"`
	Total     int64 `json:"total"`
}

func NewFeesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FeesOptions{}

	cmd := &cobra.Command{
		Use:          "fees",
		Short:        "Compute delivery fees for an ad-hoc order",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := computeFees(opts)
			if err != nil {
				return err
			}
			text := fmt.Sprintf("logistics: %d\npackaging: %d\ngrinding:  %d\ntotal:     %d\n",
				res.Logistics, res.Packaging, res.Grinding, res.Total)
			return writeResult(cmd.OutOrStdout(), rootOpts.Format, res, text)
		},
	}

	cmd.Flags().IntVar(&opts.HeavyKg, "heavy", 0, "kilograms of heavy items")
	cmd.Flags().IntVar(&opts.OtherKg, "other", 0, "kilograms of other items")
	cmd.Flags().IntVar(&opts.GrindKg, "grind", 0, "kilograms to grind")
	cmd.Flags().StringVar(&opts.Packaging, "packaging", "", "packaging type (nylon|carton)")
	return cmd
}

func computeFees(opts *FeesOptions) (*FeesResult, error) {
	if opts.HeavyKg < 0 || opts.OtherKg < 0 || opts.GrindKg < 0 {
		return nil, fmt.Errorf("quantities must not be negative")
	}
	packaging := domain.PackagingType(opts.Packaging)
	if !packaging.Valid() {
		return nil, fmt.Errorf("unknown packaging type %q", opts.Packaging)
	}

	items := []logistics.Item{
		{Quantity: opts.HeavyKg, IsHeavy: true, PackagingType: packaging},
		{Quantity: opts.OtherKg, PackagingType: packaging},
	}
	res := &FeesResult{
		Logistics: logistics.CalculateLogistics(items),
		Packaging: logistics.CalculatePackagingFee(items),
		Grinding:  logistics.CalculateGrindingFee([]logistics.Item{{Quantity: opts.GrindKg, NeedsGrinding: true}}),
	}
	res.Total = res.Logistics + res.Packaging + res.Grinding
	return res, nil
}

func writeResult(w io.Writer, format string, v any, text string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := io.WriteString(w, text)
	return err
}

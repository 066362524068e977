package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ppiankov/rflocate/internal/geo"
	"github.com/ppiankov/rflocate/internal/model"
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert between geographic and planar coordinates",
	Long: `Convert translates positions between latitude/longitude and the planar
km frame centred on the configured origin (origin.lat, origin.lon).

Example:
  rflocate convert to-xy 39.95 116.45
  rflocate convert to-latlon 12.5 -3.2
  rflocate convert distance 39.90 116.40 39.95 116.45`,
}

var toXYCmd = &cobra.Command{
	Use:   "to-xy <lat> <lon>",
	Short: "Convert latitude/longitude to planar x/y (km)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseFloats(args)
		if err != nil {
			return err
		}
		t, err := originTransform()
		if err != nil {
			return err
		}
		x, y := t.Forward(values[0], values[1])
		fmt.Fprintf(cmd.OutOrStdout(), "x=%.6f y=%.6f\n", x, y)
		return nil
	},
}

var toLatLonCmd = &cobra.Command{
	Use:   "to-latlon <x> <y>",
	Short: "Convert planar x/y (km) to latitude/longitude",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseFloats(args)
		if err != nil {
			return err
		}
		t, err := originTransform()
		if err != nil {
			return err
		}
		lat, lon := t.Inverse(values[0], values[1])
		fmt.Fprintf(cmd.OutOrStdout(), "lat=%.8f lon=%.8f\n", lat, lon)
		return nil
	},
}

var distanceCmd = &cobra.Command{
	Use:   "distance <lat1> <lon1> <lat2> <lon2>",
	Short: "Great-circle distance between two points (km)",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := parseFloats(args)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%.6f km\n", geo.HaversineKm(v[0], v[1], v[2], v[3]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.AddCommand(toXYCmd)
	convertCmd.AddCommand(toLatLonCmd)
	convertCmd.AddCommand(distanceCmd)
}

func originTransform() (*geo.Equirectangular, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return geo.FromConfig(cfg.Origin), nil
}

func parseFloats(args []string) ([]float64, error) {
	values := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", model.ErrInvalidInput, a)
		}
		values[i] = v
	}
	return values, nil
}

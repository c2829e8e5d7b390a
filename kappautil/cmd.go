/*
Copyright © 2024 the Kappa authors.
This file is part of Kappa.

Kappa is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Kappa is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Kappa.  If not, see <http://www.gnu.org/licenses/>.
*/

package kappautil

import (
	"fmt"
	"os"

	"github.com/spatialmodel/kappa"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to Kappa.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Structure",
			usage: `
              Structure is the path to a TOML file holding the primitive cell,
              the atoms, the point group and the real-space force constants.
              It can include environment variables.`,
			shorthand:  "s",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "Mesh",
			usage: `
              Mesh is the number of divisions of the dense sampling mesh along
              each reciprocal axis.`,
			shorthand:  "m",
			defaultVal: []int{8, 8, 8},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "MeshDivisors",
			usage: `
              MeshDivisors divide the dense mesh into the coarse mesh on which
              linewidths are calculated. Divisors that do not divide the mesh
              are ignored with a warning.`,
			defaultVal: []int{1, 1, 1},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "CoarseMeshShifts",
			usage: `
              CoarseMeshShifts shifts the coarse mesh by half a coarse step
              along each axis. Shifts need an even divisor.`,
			defaultVal: []bool{false, false, false},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "NoKappaStars",
			usage: `
              NoKappaStars turns off the symmetry reduction: every point of
              the coarse mesh is calculated separately.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "GridPoints",
			usage: `
              GridPoints lists dense-mesh grid point indices to calculate.
              Points not on the coarse mesh are dropped. Empty means that the
              points are chosen from the mesh.`,
			shorthand:  "g",
			defaultVal: []int{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "Sigmas",
			usage: `
              Sigmas are the smearing widths [THz] passed to the phonon-phonon
              interaction.`,
			defaultVal: []float64{0.1},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TMin",
			usage: `
              TMin is the lowest temperature [K].`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TMax",
			usage: `
              TMax is the highest temperature [K]. It is included when it
              lies on the temperature step.`,
			defaultVal: 1500.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TStep",
			usage: `
              TStep is the temperature step [K].`,
			defaultVal: 10.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "GVDeltaQ",
			usage: `
              GVDeltaQ is the finite-difference step [1/Å] used to calculate
              group velocities.`,
			defaultVal: 1e-4,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "CutoffFrequency",
			usage: `
              CutoffFrequency [THz] excludes modes at or below it from the
              conductivity.`,
			defaultVal: 1e-4,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "HarmonicSolver",
			usage: `
              HarmonicSolver chooses how phonons are calculated: 'direct'
              diagonalizes the dynamical matrix every time, 'cached' remembers
              the phonons of every wavevector it has seen.`,
			defaultVal: "cached",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "HarmonicCacheSize",
			usage: `
              HarmonicCacheSize is the number of wavevectors the cached
              harmonic solver keeps in memory.`,
			defaultVal: 10000,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Interaction.Umklapp",
			usage: `
              Interaction.Umklapp is the prefactor [1/(THz·K)] of the Umklapp
              scattering term γ = A·ν²·T·exp(-Θ/3T).`,
			defaultVal: 1e-4,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Interaction.DebyeTemperature",
			usage: `
              Interaction.DebyeTemperature is Θ [K] in the Umklapp term.`,
			defaultVal: 300.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Interaction.PointDefect",
			usage: `
              Interaction.PointDefect is the prefactor [1/THz³] of the point
              defect scattering term γ = B·ν⁴.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ReadGamma",
			usage: `
              ReadGamma reads precomputed linewidths instead of calculating
              them. A path ending in .yaml or .yml is read as a YAML linewidth
              file; any other path is a directory of netCDF files as written
              by WriteGamma with Output.Format=netcdf.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "WriteGamma",
			usage: `
              WriteGamma writes the per-grid-point results in the format
              given by Output.Format.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Output.Format",
			usage: `
              Output.Format is one of 'netcdf' (one file per grid point and
              smearing width), 'sqlite' (one database per run directory) or
              'yaml' (one linewidth file).`,
			defaultVal: "netcdf",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Output.Dir",
			usage: `
              Output.Dir is the directory output files are written to. It can
              include environment variables.`,
			shorthand:  "o",
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Output.Stem",
			usage: `
              Output.Stem is the first part of every output file name.`,
			defaultVal: "kappa",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can
              include environment variables. If LogFile is left blank, the
              logfile will be saved in Output.Dir as {Output.Stem}.log.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is one of trace, debug, info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "NumWorkers",
			usage: `
              NumWorkers is the number of grid points calculated
              concurrently. Zero means one per processor.`,
			shorthand:  "n",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("KAPPA")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case []bool:
				set.BoolSliceP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case []int:
				set.IntSliceP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case []float64:
				set.Float64SliceP(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(gridCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("kappa: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "kappa",
	Short: "Lattice thermal conductivity in the relaxation-time approximation.",
	Long: `Kappa calculates the lattice thermal conductivity tensor of a crystal
by summing mode contributions over a symmetry-reduced reciprocal-space mesh in
the single-mode relaxation-time approximation.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'KAPPA_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of Kappa.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("Kappa v%s\n", kappa.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that calculates the conductivity.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Calculate the lattice thermal conductivity.",
	Long: `run calculates the lattice thermal conductivity of the crystal in the
Structure file and prints the conductivity tensor [W/(m·K)] at every
temperature for every smearing width.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfigData(Cfg)
		if err != nil {
			return err
		}
		_, err = Run(cmd.Context(), cfg, cmd.OutOrStdout())
		return err
	},
	DisableAutoGenTag: true,
}

// gridCmd is a command that lists the grid points a run would calculate.
var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "List the irreducible grid points",
	Long: `grid lists the grid points that a run with the same configuration would
calculate, with their weights, the sizes of their stars and their reduced
wavevectors.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfigData(Cfg)
		if err != nil {
			return err
		}
		return Grid(cfg, cmd.OutOrStdout())
	},
	DisableAutoGenTag: true,
}

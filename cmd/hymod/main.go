package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chrissnell/hymod/internal/app"
	"github.com/chrissnell/hymod/internal/constants"
	"github.com/chrissnell/hymod/internal/hymod"
	"github.com/chrissnell/hymod/internal/log"
	"github.com/chrissnell/hymod/pkg/config"
	"github.com/chrissnell/hymod/pkg/responseformat"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "hymod: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "hymod",
		Usage: "HyMod rainfall-runoff model driver",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration source (YAML file or SQLite database)",
				Value:   "hymod.yaml",
				Sources: cli.EnvVars("HYMOD_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "config-backend",
				Usage:   "Configuration backend type: 'yaml' or 'sqlite'",
				Value:   "yaml",
				Sources: cli.EnvVars("HYMOD_CONFIG_BACKEND"),
			},
			&cli.StringFlag{
				Name:    "run-name",
				Usage:   "Run to load from a SQLite configuration database",
				Value:   config.DefaultRunName,
				Sources: cli.EnvVars("HYMOD_RUN_NAME"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Turn on debugging output",
				Sources: cli.EnvVars("HYMOD_DEBUG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Evaluate every parameter vector of the configured sample file",
				Flags:  []cli.Flag{formatFlag()},
				Action: runCmd,
			},
			{
				Name:      "simulate",
				Usage:     "Simulate one parameter vector and print the result",
				ArgsUsage: "KS KQ DDF TB TTH ALPHA B HUZ",
				Flags: []cli.Flag{
					formatFlag(),
					&cli.BoolFlag{Name: "summary", Usage: "Print only the run summary"},
				},
				Action: simulateCmd,
			},
			{
				Name:   "pe",
				Usage:  "Print the potential evapotranspiration series of the configured window",
				Flags:  []cli.Flag{formatFlag()},
				Action: peCmd,
			},
			{
				Name:  "config",
				Usage: "Inspect, convert and manage run configurations",
				Commands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Validate the configuration and print it as YAML",
						Action: configShowCmd,
					},
					{
						Name:   "list",
						Usage:  "List the runs stored in a SQLite configuration database",
						Action: configListCmd,
					},
					{
						Name:      "delete",
						Usage:     "Delete a run from a SQLite configuration database",
						ArgsUsage: "RUN-NAME",
						Action:    configDeleteCmd,
					},
					{
						Name:      "convert",
						Usage:     "Store a YAML configuration in a SQLite configuration database",
						ArgsUsage: "YAML-FILE SQLITE-FILE",
						Action:    configConvertCmd,
					},
				},
			},
			{
				Name:  "version",
				Usage: "Show version and exit",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Printf("hymod %s\n", constants.Version)
					return nil
				},
			},
		},
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "format",
		Usage: "Output format: 'json' or 'msgpack'",
		Value: responseformat.JSON,
	}
}

// setup initializes logging and opens the configured configuration provider
func setup(cmd *cli.Command) (config.ConfigProvider, error) {
	if err := log.Init(cmd.Bool("debug")); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return newProvider(cmd.String("config"), cmd.String("config-backend"), cmd.String("run-name"))
}

func newProvider(cfgFile, cfgBackend, runName string) (config.ConfigProvider, error) {
	filename, _ := filepath.Abs(cfgFile)

	switch cfgBackend {
	case "yaml":
		return config.NewYAMLProvider(filename), nil
	case "sqlite":
		provider, err := config.NewSQLiteProvider(filename, runName)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
	}
}

func runCmd(ctx context.Context, cmd *cli.Command) error {
	provider, err := setup(cmd)
	if err != nil {
		return err
	}
	defer provider.Close()
	defer log.Sync()

	f, err := responseformat.NewFormatter(cmd.String("format"))
	if err != nil {
		return err
	}

	report, err := app.New(provider, log.GetSugaredLogger()).Run(ctx)
	if err != nil {
		return err
	}
	return f.Write(os.Stdout, report)
}

type simulateOutput struct {
	Parameters hymod.Parameters `json:"parameters"`
	Summary    hymod.Summary    `json:"summary"`
	Dates      []string         `json:"dates,omitempty"`
	Q          []float64        `json:"q,omitempty"`
	Qq         []float64        `json:"qq,omitempty"`
	Qs         []float64        `json:"qs,omitempty"`
	AE         []float64        `json:"ae,omitempty"`
	Melt       []float64        `json:"melt,omitempty"`
	Final      hymod.State      `json:"final"`
}

func simulateCmd(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) != hymod.VectorLength {
		return fmt.Errorf("simulate takes %d parameter values, got %d", hymod.VectorLength, len(args))
	}
	vector := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("parameter %d: %w", i+1, err)
		}
		vector[i] = v
	}

	f, err := responseformat.NewFormatter(cmd.String("format"))
	if err != nil {
		return err
	}

	provider, err := setup(cmd)
	if err != nil {
		return err
	}
	defer provider.Close()
	defer log.Sync()

	res, summary, err := app.New(provider, log.GetSugaredLogger()).Simulate(vector)
	if err != nil {
		return err
	}

	out := simulateOutput{
		Parameters: res.Parameters,
		Summary:    summary,
		Final:      res.Final,
	}
	if !cmd.Bool("summary") {
		frc := res.Forcing()
		out.Dates = make([]string, len(frc.Dates))
		for i, d := range frc.Dates {
			out.Dates[i] = d.String()
		}
		out.Q = res.Fluxes.Q
		out.Qq = res.Fluxes.Qq
		out.Qs = res.Fluxes.Qs
		out.AE = res.Fluxes.AE
		out.Melt = res.Fluxes.Melt
	}
	return f.Write(os.Stdout, out)
}

type peOutput struct {
	GageID   string    `json:"gage_id"`
	Latitude float64   `json:"latitude"`
	StartDay int       `json:"start_day"`
	Dates    []string  `json:"dates"`
	AvgTemp  []float64 `json:"avg_temp"`
	PE       []float64 `json:"pe"`
}

func peCmd(ctx context.Context, cmd *cli.Command) error {
	f, err := responseformat.NewFormatter(cmd.String("format"))
	if err != nil {
		return err
	}

	provider, err := setup(cmd)
	if err != nil {
		return err
	}
	defer provider.Close()
	defer log.Sync()

	basin, err := app.New(provider, log.GetSugaredLogger()).PE()
	if err != nil {
		return err
	}

	out := peOutput{
		GageID:   basin.Data.GageID,
		Latitude: basin.Data.Latitude,
		StartDay: basin.StartDay,
		Dates:    make([]string, basin.Data.Len()),
		AvgTemp:  basin.Data.AvgTemp,
		PE:       basin.PE,
	}
	for i, d := range basin.Data.Dates {
		out.Dates[i] = d.String()
	}
	return f.Write(os.Stdout, out)
}

func configShowCmd(ctx context.Context, cmd *cli.Command) error {
	provider, err := setup(cmd)
	if err != nil {
		return err
	}
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	out, err := config.MarshalYAML(cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

// runStore opens the configuration database for run management
func runStore(cmd *cli.Command) (*config.SQLiteProvider, error) {
	if cmd.String("config-backend") != "sqlite" {
		return nil, errors.New("run management needs --config-backend sqlite")
	}
	filename, _ := filepath.Abs(cmd.String("config"))
	return config.NewSQLiteProvider(filename, cmd.String("run-name"))
}

func configListCmd(ctx context.Context, cmd *cli.Command) error {
	db, err := runStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	names, err := db.ListRuns()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(cmd.Root().Writer, name)
	}
	return nil
}

func configDeleteCmd(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) != 1 {
		return fmt.Errorf("delete takes one run name, got %d arguments", len(args))
	}
	if err := log.Init(cmd.Bool("debug")); err != nil {
		return err
	}

	db, err := runStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteRun(args[0]); err != nil {
		return err
	}
	log.Infof("deleted run %s", args[0])
	return nil
}

func configConvertCmd(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) != 2 {
		return fmt.Errorf("convert takes a YAML file and a SQLite file, got %d arguments", len(args))
	}
	if err := log.Init(cmd.Bool("debug")); err != nil {
		return err
	}

	cfg, err := config.NewYAMLProvider(args[0]).LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := config.NewSQLiteProvider(args[1], cfg.Name)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SaveConfig(cfg); err != nil {
		return fmt.Errorf("could not save run %s: %w", cfg.Name, err)
	}
	log.Infof("stored run %s in %s", cfg.Name, args[1])
	return nil
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"freightrate/internal/apperrors"
	"freightrate/internal/config"
	"freightrate/internal/db"
	"freightrate/internal/logging"
	"freightrate/internal/rate"
	"freightrate/internal/scenario"
)

type calcOptions struct {
	scenarioFile string
	origin       string
	destination  string
	container    string
	sensitivity  float64
	// sensitivitySet distinguishes an explicit 0 from an unset flag.
	sensitivitySet bool
	format         string
	debug          bool
	databaseURL    string
}

var calcOpts calcOptions

// calculateCmd represents the calculate command
var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Calculate the freight rate for one container",
	Long: `Calculate a freight rate from an HCL scenario file. Flags override the
route, container and sensitivity given in the file.

Without a database only the built-in port table resolves regions, and
seasonality comes from the scenario's seasonality block or stays neutral.

Examples:
  ratecalc calculate --scenario lanes.hcl
  ratecalc calculate -s lanes.hcl --container "40' HQ" --debug
  ratecalc calculate -s lanes.hcl --sensitivity 0.8 --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		calcOpts.sensitivitySet = cmd.Flags().Changed("sensitivity")
		calcOpts.databaseURL = databaseURL
		return runCalculation(cmd.Context(), calcOpts, cmd.OutOrStdout())
	},
}

func init() {
	f := calculateCmd.Flags()
	f.StringVarP(&calcOpts.scenarioFile, "scenario", "s", "", "HCL scenario file with base rates and indices")
	f.StringVarP(&calcOpts.origin, "origin", "o", "", "origin port id (e.g. CNSHA)")
	f.StringVarP(&calcOpts.destination, "destination", "d", "", "destination port id (e.g. NLRTM)")
	f.StringVarP(&calcOpts.container, "container", "c", "", "container type (e.g. 40HC, 20GP)")
	f.Float64Var(&calcOpts.sensitivity, "sensitivity", 0, "sensitivity of the rate to the market index")
	f.StringVarP(&calcOpts.format, "format", "f", "text", "output format (text, json)")
	f.BoolVar(&calcOpts.debug, "debug", false, "include the calculation trace")
}

func runCalculation(ctx context.Context, opts calcOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	format := strings.ToLower(strings.TrimSpace(opts.format))
	if format != "text" && format != "json" {
		return apperrors.Newf(apperrors.TypeInput, "unknown output format %q", opts.format)
	}

	sc := &scenario.Scenario{}
	if opts.scenarioFile != "" {
		var err error
		if sc, err = scenario.Load(opts.scenarioFile); err != nil {
			return err
		}
	}
	if opts.origin != "" {
		sc.Origin = opts.origin
	}
	if opts.destination != "" {
		sc.Destination = opts.destination
	}
	if opts.container != "" {
		sc.Container = opts.container
	}
	if opts.sensitivitySet {
		s := opts.sensitivity
		sc.Sensitivity = &s
	}
	if sc.Sensitivity == nil {
		return apperrors.New(apperrors.TypeInput, "sensitivity is required (--sensitivity or scenario file)")
	}
	cfg := config.Load()

	log := logging.Logger

	var (
		store       rate.RegionStore
		seasonality rate.SeasonalityProvider
	)
	if sc.Seasonality != nil {
		seasonality = rate.FixedSeasonality(*sc.Seasonality)
	}
	if strings.TrimSpace(opts.databaseURL) != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.NewPool(connectCtx, opts.databaseURL, poolOptions(cfg))
		cancel()
		if err != nil {
			return apperrors.Storage("connect db", err)
		}
		defer pool.Close()
		pg := db.NewStore(pool)
		store = pg
		if seasonality == nil {
			seasonality = pg
		}
	}

	engine := rate.NewEngine(
		rate.NewRegionResolver(store, cfg.RegionLookupTimeout, log.Named("regions")),
		seasonality,
		rate.WithSeasonalityTimeout(cfg.SeasonalityTimeout),
		rate.WithLogger(log.Named("engine")),
	)

	req := sc.Request()
	req.Debug = opts.debug
	res, calcErr := engine.Calculate(ctx, req)
	if calcErr != nil {
		log.Error("calculation failed", zap.Error(calcErr))
	}

	var err error
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(res)
	} else {
		err = printResult(out, req, res)
	}
	if err != nil {
		return err
	}
	return calcErr
}

func poolOptions(cfg config.Config) db.Options {
	return db.Options{
		AppName:          "ratecalc",
		MaxConns:         int32(cfg.DBMaxConns),
		StatementTimeout: cfg.DBStatementTimeout,
	}
}

func printResult(w io.Writer, req rate.Request, res rate.Result) error {
	d := res.Details
	bw := &errWriter{w: w}

	bw.printf("Route:        %s (%s) -> %s (%s)\n",
		orDash(req.OriginPortID), regionLabel(d.OriginRegion),
		orDash(req.DestinationPortID), regionLabel(d.DestinationRegion))
	bw.printf("Container:    %s (%s)\n", orDash(req.ContainerType), orDash(d.ContainerClass))
	if res.OK() {
		bw.printf("Base rate:    %s\n", decimal.NewFromFloat(res.BaseRate).StringFixed(2))
		sources := "none"
		if len(d.IndexSources) > 0 {
			sources = strings.Join(d.IndexSources, ", ")
		}
		bw.printf("Index:        %s (%s)\n", decimal.NewFromFloat(res.WeightedIndex).StringFixed(4), sources)
		bw.printf("Seasonality:  %s (confidence %s)\n",
			decimal.NewFromFloat(res.SeasonalityFactor).StringFixed(4),
			decimal.NewFromFloat(d.SeasonalityConfidence).StringFixed(2))
		bw.printf("Sensitivity:  %s\n", number(d.SensitivityCoeff))
		bw.printf("Final rate:   %s\n", decimal.NewFromFloat(res.FinalRate).String())
	} else {
		bw.printf("Final rate:   unavailable (%s)\n", res.Error)
	}
	bw.printf("Computed in %dms\n", d.CalculationTimeMs)

	if len(res.Trace) > 0 {
		bw.printf("\nTrace:\n")
		for i, step := range res.Trace {
			bw.printf("%2d. [%s] %s", i+1, step.Status, step.Stage)
			if step.Details != "" {
				bw.printf(": %s", step.Details)
			}
			if step.Error != "" {
				bw.printf(" (error: %s)", step.Error)
			}
			bw.printf("\n")
		}
	}
	return bw.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func regionLabel(r *rate.Region) string {
	if r == nil {
		return rate.Unknown.String()
	}
	return r.String()
}

// number prints v exactly; decimal cannot hold NaN or Inf.
func number(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprint(v)
	}
	return decimal.NewFromFloat(v).String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/licitaradar/radar/internal/model"
	"github.com/licitaradar/radar/internal/report"
)

var (
	searchSector   string
	searchRegions  []string
	searchKeywords []string
	searchFrom     string
	searchTo       string
	searchExcel    bool
)

// cliBilling grants a local run full capabilities without a billing
// backend. Quota accounting does not apply to operator-driven searches.
type cliBilling struct {
	excel bool
}

func (b cliBilling) Authorize(ctx context.Context, token string) (model.PlanCapabilities, error) {
	return model.PlanCapabilities{
		UserID:          "cli",
		MaxLookbackDays: 365,
		ExcelAllowed:    b.excel,
		QuotaRemaining:  1,
	}, nil
}

func (b cliBilling) ConsumeQuota(ctx context.Context, userID string) error { return nil }

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a single search and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if searchSector == "" {
			return eris.New("--sector is required")
		}

		env, err := initEnv(ctx, cliBilling{excel: searchExcel}, false)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Orchestrator.Run(ctx, "", model.SearchParams{
			Sector:   searchSector,
			Regions:  searchRegions,
			Keywords: searchKeywords,
			DateFrom: searchFrom,
			DateTo:   searchTo,
		})
		if err != nil {
			return err
		}

		sess, err := env.Store.GetSession(ctx, result.SessionID)
		if err != nil {
			return eris.Wrap(err, "load session")
		}

		fmt.Println(report.FormatText(*sess, result))
		if sess.ExcelPath != "" {
			fmt.Printf("Planilha: %s\n", sess.ExcelPath)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchSector, "sector", "", "sector profile id (required)")
	searchCmd.Flags().StringSliceVar(&searchRegions, "uf", nil, "state codes to search (default all)")
	searchCmd.Flags().StringSliceVar(&searchKeywords, "keywords", nil, "extra keywords beyond the sector profile")
	searchCmd.Flags().StringVar(&searchFrom, "from", "", "publication date lower bound (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchTo, "to", "", "publication date upper bound (YYYY-MM-DD)")
	searchCmd.Flags().BoolVar(&searchExcel, "excel", false, "also write an xlsx report")
	rootCmd.AddCommand(searchCmd)
}

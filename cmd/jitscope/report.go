package main

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"jitscope/internal/model"
	"jitscope/internal/storage"
)

type resultReport struct {
	Fast              int                  `json:"fast"`
	FastProfitable    int                  `json:"fast_profitable"`
	Preflight         int                  `json:"preflight"`
	PreflightFailed   int                  `json:"preflight_failed"`
	Confirmed         int                  `json:"confirmed"`
	ConfirmedNetUSD   decimal.Decimal      `json:"confirmed_net_usd"`
	BestOpportunities []model.ResultRecord `json:"best_opportunities"`
	FailureReasons    map[string]int       `json:"failure_reasons,omitempty"`
}

func runReport(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("out")
	top, _ := cmd.Flags().GetInt("top")

	records, err := storage.ReadResults(path)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), summarizeResults(records, top))
}

// summarizeResults keeps the latest record per candidate and kind.
func summarizeResults(records []model.ResultRecord, top int) resultReport {
	type key struct {
		id   string
		kind model.ResultKind
	}
	latest := make(map[key]model.ResultRecord, len(records))
	order := make([]key, 0, len(records))
	for _, r := range records {
		k := key{id: r.CandidateID, kind: r.Kind}
		if _, ok := latest[k]; !ok {
			order = append(order, k)
		}
		latest[k] = r
	}

	rep := resultReport{ConfirmedNetUSD: decimal.Zero, FailureReasons: map[string]int{}}
	var confirmed []model.ResultRecord
	for _, k := range order {
		r := latest[k]
		switch r.Kind {
		case model.ResultKindFast:
			rep.Fast++
			if r.Profitable {
				rep.FastProfitable++
			}
		case model.ResultKindPreflight:
			rep.Preflight++
			if !r.Success {
				rep.PreflightFailed++
				rep.FailureReasons[r.Reason]++
			}
			if r.Profitable {
				rep.Confirmed++
				rep.ConfirmedNetUSD = rep.ConfirmedNetUSD.Add(netUSD(r))
				confirmed = append(confirmed, r)
			}
		}
	}

	sort.SliceStable(confirmed, func(i, j int) bool {
		return netUSD(confirmed[i]).GreaterThan(netUSD(confirmed[j]))
	})
	if top >= 0 && len(confirmed) > top {
		confirmed = confirmed[:top]
	}
	rep.BestOpportunities = confirmed
	if len(rep.FailureReasons) == 0 {
		rep.FailureReasons = nil
	}
	return rep
}

func netUSD(r model.ResultRecord) decimal.Decimal {
	v, err := decimal.NewFromString(r.NetProfitUSD)
	if err != nil {
		return decimal.Zero
	}
	return v
}

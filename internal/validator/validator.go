// Package validator filters raw snapshot records before they reach the store.
package validator

import (
	"fmt"

	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/logger"
	"github.com/tphakala/pokerwatch/internal/sites"
	"github.com/tphakala/pokerwatch/internal/source"
)

// DropReason explains why a record was rejected.
type DropReason string

const (
	ReasonUnknownSite DropReason = "unknown_site"
	ReasonNegative    DropReason = "negative_count"
	ReasonOutlier     DropReason = "baseline_outlier"
	ReasonOverCap     DropReason = "over_player_cap"
)

// Drop is a rejected record.
type Drop struct {
	Record source.Record
	Reason DropReason
	Detail string
}

// Result is the outcome of one validation pass. Kept records carry the
// canonical site name.
type Result struct {
	Kept    []source.Record
	Dropped []Drop
	Clamped int
}

// Validator applies the plausibility rules. It never touches the store.
type Validator struct {
	registry   *sites.Registry
	minRatio   float64
	maxRatio   float64
	maxPlayers int
	log        logger.Logger
}

// GetLogger returns the validator module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("validator")
}

// New creates a validator over registry with the configured bounds.
func New(registry *sites.Registry, settings *conf.ValidationSettings) *Validator {
	return &Validator{
		registry:   registry,
		minRatio:   settings.MinRatio,
		maxRatio:   settings.MaxRatio,
		maxPlayers: settings.MaxPlayers,
		log:        GetLogger(),
	}
}

// Validate filters records. Per-record problems are logged and reported in
// Result.Dropped; they never fail the call.
func (v *Validator) Validate(records []source.Record) Result {
	res := Result{Kept: make([]source.Record, 0, len(records))}

	for _, rec := range records {
		site, ok := v.registry.Lookup(rec.SiteName)
		if !ok {
			res.Dropped = append(res.Dropped, v.drop(rec, ReasonUnknownSite, "site name is not in the roster"))
			continue
		}
		rec.SiteName = site.Name

		if rec.PlayersOnline < 0 || rec.CashPlayers < 0 || rec.Peak24h < 0 || rec.SevenDayAvg < 0 {
			res.Dropped = append(res.Dropped, v.drop(rec, ReasonNegative, "metric counts must not be negative"))
			continue
		}

		if v.maxPlayers > 0 && rec.PlayersOnline > v.maxPlayers {
			res.Dropped = append(res.Dropped, v.drop(rec, ReasonOverCap,
				fmt.Sprintf("players_online %d exceeds cap %d", rec.PlayersOnline, v.maxPlayers)))
			continue
		}

		if site.ExpectedPlayers > 0 {
			ratio := float64(rec.PlayersOnline) / float64(site.ExpectedPlayers)
			if ratio < v.minRatio || ratio > v.maxRatio {
				res.Dropped = append(res.Dropped, v.drop(rec, ReasonOutlier,
					fmt.Sprintf("ratio %.4f to expected %d outside [%g, %g]", ratio, site.ExpectedPlayers, v.minRatio, v.maxRatio)))
				continue
			}
		}

		if rec.CashPlayers > rec.PlayersOnline {
			v.log.Debug("clamping cash players to players online",
				logger.String("site", rec.SiteName),
				logger.Int("cash_players", rec.CashPlayers),
				logger.Int("players_online", rec.PlayersOnline))
			rec.CashPlayers = rec.PlayersOnline
			res.Clamped++
		}

		res.Kept = append(res.Kept, rec)
	}

	return res
}

func (v *Validator) drop(rec source.Record, reason DropReason, detail string) Drop {
	v.log.Warn("dropping snapshot record",
		logger.String("site", rec.SiteName),
		logger.String("reason", string(reason)),
		logger.String("detail", detail),
		logger.Int("players_online", rec.PlayersOnline))
	return Drop{Record: rec, Reason: reason, Detail: detail}
}

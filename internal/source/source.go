// Package source provides snapshot sources: collaborators that return one
// record per site for the current collection cycle, or fail as a whole.
package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/antonholmquist/jason"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
)

// Record is one raw, unvalidated observation for a site.
type Record struct {
	SiteName      string `json:"site_name" yaml:"site_name"`
	PlayersOnline int    `json:"players_online" yaml:"players_online"`
	CashPlayers   int    `json:"cash_players" yaml:"cash_players"`
	Peak24h       int    `json:"peak_24h" yaml:"peak_24h"`
	SevenDayAvg   int    `json:"seven_day_avg" yaml:"seven_day_avg"`
}

// Source fetches all sites' records for one cycle.
type Source interface {
	Fetch(ctx context.Context) ([]Record, error)
	Name() string
}

// GetLogger returns the source module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("source")
}

// New builds the source selected by settings.
func New(settings *conf.SourceSettings) (Source, error) {
	switch settings.Type {
	case "http":
		if settings.URL == "" {
			return nil, errors.Newf("source url is not configured").
				Component("source").
				Category(errors.CategoryConfiguration).
				Build()
		}
		return NewHTTPSource(settings, nil), nil
	case "file":
		return NewFileSource(settings.Path), nil
	default:
		return nil, errors.Newf("unknown source type %q", settings.Type).
			Component("source").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// parseRecords accepts either a top-level array of records or an object
// with a "sites" array. Malformed records are logged and skipped; a payload
// with no well-formed record at all is an error.
func parseRecords(r io.Reader) ([]Record, error) {
	value, err := jason.NewValueFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot payload: %w", err)
	}

	items, err := objectArray(value)
	if err != nil {
		obj, objErr := value.Object()
		if objErr != nil {
			return nil, fmt.Errorf("snapshot payload is neither an array nor an object")
		}
		items, err = obj.GetObjectArray("sites")
		if err != nil {
			return nil, fmt.Errorf("snapshot payload has no sites array: %w", err)
		}
	}

	records := make([]Record, 0, len(items))
	for i, item := range items {
		rec, err := recordFromObject(item)
		if err != nil {
			GetLogger().Warn("dropping malformed snapshot record",
				logger.Int("index", i),
				logger.Error(err))
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 && len(items) > 0 {
		return nil, fmt.Errorf("none of %d snapshot records is well formed", len(items))
	}
	return records, nil
}

func recordFromObject(obj *jason.Object) (Record, error) {
	name, err := obj.GetString("site_name")
	if err != nil {
		if name, err = obj.GetString("name"); err != nil {
			return Record{}, fmt.Errorf("missing site_name")
		}
	}
	name = strings.TrimSpace(name)

	players, err := intField(obj, "players_online")
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", name, err)
	}

	rec := Record{SiteName: name, PlayersOnline: players}
	// the upstream omits optional metrics for some sites
	optional := []struct {
		key string
		dst *int
	}{
		{"cash_players", &rec.CashPlayers},
		{"peak_24h", &rec.Peak24h},
		{"seven_day_avg", &rec.SevenDayAvg},
	}
	for _, f := range optional {
		if *f.dst, err = optionalIntField(obj, f.key); err != nil {
			return Record{}, fmt.Errorf("%s: %w", name, err)
		}
	}
	return rec, nil
}

// objectArray returns the elements of a top-level JSON array, each of which
// must be an object.
func objectArray(value *jason.Value) ([]*jason.Object, error) {
	elems, err := value.Array()
	if err != nil {
		return nil, err
	}
	out := make([]*jason.Object, 0, len(elems))
	for i, elem := range elems {
		obj, err := elem.Object()
		if err != nil {
			return nil, fmt.Errorf("element %d is not an object: %w", i, err)
		}
		out = append(out, obj)
	}
	return out, nil
}

// optionalIntField reads key as zero when it is absent or null and fails
// when it holds anything other than a number.
func optionalIntField(obj *jason.Object, key string) (int, error) {
	v, err := obj.GetValue(key)
	if err != nil || v.Null() == nil {
		return 0, nil
	}
	return intField(obj, key)
}

// intField reads an integer that may have been encoded as a float.
func intField(obj *jason.Object, key string) (int, error) {
	if n, err := obj.GetInt64(key); err == nil {
		return int(n), nil
	}
	f, err := obj.GetFloat64(key)
	if err != nil {
		return 0, fmt.Errorf("missing or non-numeric %s", key)
	}
	return int(f), nil
}

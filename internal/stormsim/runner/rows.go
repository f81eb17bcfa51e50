package runner

import (
	"sort"

	"github.com/canopyrisk/stormsim/internal/stormsim/geoagg"
	"github.com/canopyrisk/stormsim/internal/stormsim/model"
	"github.com/canopyrisk/stormsim/internal/stormsim/output"
)

// emitExposuresAndPremiums writes the sampling-phase aggregates. Rows go
// through a buffered stream so row-per-geography schemas reach the fanout in
// batches rather than one send per row.
func (t *trialRun) emitExposuresAndPremiums(outputs output.Fanout) (err error) {
	stream := t.newStream(outputs)
	defer closeStream(stream, &err)

	switch t.trial.SchemaVersion {
	case model.FlatRowSchemaVersion:
		if err = stream.Add(model.OutputExposures, t.flatRow("sim_id", t.exposures)); err != nil {
			return err
		}
		if err = stream.Add(model.OutputPremiums, t.flatRow("sim_id", t.premiums)); err != nil {
			return err
		}
	default:
		if err = t.addGeoTypeRows(stream, model.OutputExposures, t.exposures); err != nil {
			return err
		}
		if err = t.addGeoTypeRows(stream, model.OutputPremiums, t.premiums); err != nil {
			return err
		}
	}
	return nil
}

// emitLossesAndNLR writes the impact-phase aggregates. The net loss ratio is
// derived per geography from the premium and loss aggregates; the run-wide
// ratio is computed from the run-wide totals, not from whichever geography
// happened to be visited last.
func (t *trialRun) emitLossesAndNLR(outputs output.Fanout) (err error) {
	stream := t.newStream(outputs)
	defer closeStream(stream, &err)

	switch t.trial.SchemaVersion {
	case model.FlatRowSchemaVersion:
		// Loss outputs historically use a camel-case id column; downstream
		// consumers depend on it.
		if err = stream.Add(model.OutputLosses, t.flatRow("SimId", t.losses)); err != nil {
			return err
		}
		if err = stream.Add(model.OutputNLR, t.flatNLRRow()); err != nil {
			return err
		}
	default:
		if err = t.addGeoTypeRows(stream, model.OutputLosses, t.losses); err != nil {
			return err
		}
		if err = t.addGeoTypeNLRRows(stream); err != nil {
			return err
		}
	}
	return nil
}

func (t *trialRun) newStream(outputs output.Fanout) *output.BufferedOutputStream {
	return output.NewBufferedOutputStream(
		outputs,
		t.runner.config.PerOutputMaxRows,
		t.runner.config.TotalBufferMaxRows,
	)
}

// closeStream performs the mandatory final flush, preserving any earlier
// error from the emit path.
func closeStream(stream *output.BufferedOutputStream, err *error) {
	if cerr := stream.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

// flatRow renders an aggregate as a single wide row: the trial id, the grand
// total and one column per geography across all hierarchy levels.
func (t *trialRun) flatRow(idColumn string, agg *geoagg.Aggregate) model.Row {
	row := model.Row{
		idColumn: t.trial.SimID,
		"total":  agg.Total,
	}
	for _, level := range aggregateLevels(agg) {
		for _, name := range sortedKeys(level.values) {
			row[output.FormatColumnName(name, "")] = level.values[name]
		}
	}
	return row
}

// flatNLRRow is the wide-row rendering of the net loss ratio.
func (t *trialRun) flatNLRRow() model.Row {
	row := model.Row{
		"SimId": t.trial.SimID,
		"total": geoagg.LossRatio(t.premiums.Total, t.losses.Total),
	}
	premiumLevels := aggregateLevels(t.premiums)
	lossLevels := aggregateLevels(t.losses)
	for i := range premiumLevels {
		for _, name := range sortedKeys(premiumLevels[i].values) {
			ratio := geoagg.LossRatio(premiumLevels[i].values[name], lossLevels[i].values[name])
			row[output.FormatColumnName(name, "")] = ratio
		}
	}
	return row
}

// addGeoTypeRows renders an aggregate as one row per geography with a
// non-zero value, plus the grand total. Zero-valued geographies are omitted:
// the universe is closed, so absence is recoverable and the tables stay small.
func (t *trialRun) addGeoTypeRows(stream *output.BufferedOutputStream, kind model.OutputKind, agg *geoagg.Aggregate) error {
	if agg.Total != 0 {
		if err := stream.Add(kind, t.geoTypeRow(model.GeoTypeTotal, model.GeoTypeTotalStr, agg.Total)); err != nil {
			return err
		}
	}
	for _, level := range aggregateLevels(agg) {
		for _, name := range sortedKeys(level.values) {
			value := level.values[name]
			if value == 0 {
				continue
			}
			if err := stream.Add(kind, t.geoTypeRow(level.geoType, name, value)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *trialRun) addGeoTypeNLRRows(stream *output.BufferedOutputStream) error {
	total := geoagg.LossRatio(t.premiums.Total, t.losses.Total)
	if total != 0 {
		if err := stream.Add(model.OutputNLR, t.geoTypeRow(model.GeoTypeTotal, model.GeoTypeTotalStr, total)); err != nil {
			return err
		}
	}
	premiumLevels := aggregateLevels(t.premiums)
	lossLevels := aggregateLevels(t.losses)
	for i := range premiumLevels {
		for _, name := range sortedKeys(premiumLevels[i].values) {
			ratio := geoagg.LossRatio(premiumLevels[i].values[name], lossLevels[i].values[name])
			if ratio == 0 {
				continue
			}
			if err := stream.Add(model.OutputNLR, t.geoTypeRow(premiumLevels[i].geoType, name, ratio)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *trialRun) geoTypeRow(geoType int, geography string, value float64) model.Row {
	return model.Row{
		"run_timestamp": t.trial.RunTimestamp,
		"sim_id":        t.trial.SimID,
		"geo_type":      geoType,
		"geography":     geography,
		"total":         value,
	}
}

type aggregateLevel struct {
	geoType int
	values  map[string]float64
}

func aggregateLevels(agg *geoagg.Aggregate) []aggregateLevel {
	return []aggregateLevel{
		{model.GeoTypeState, agg.State},
		{model.GeoTypeCounty, agg.County},
		{model.GeoTypeZip, agg.Zip},
	}
}

func sortedKeys(values map[string]float64) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

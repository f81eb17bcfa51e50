package model

// OutputKind identifies one of the logical outputs produced by a simulation.
// Each kind maps to its own table/file/payload at the sinks.
type OutputKind string

const (
	OutputExposures OutputKind = "exposures"
	OutputPremiums  OutputKind = "premiums"
	OutputLosses    OutputKind = "losses"
	OutputNLR       OutputKind = "nlr"
)

// AllOutputs lists every output kind in registration order. Buffers are
// flushed and writers are invoked in this order.
var AllOutputs = []OutputKind{OutputExposures, OutputPremiums, OutputLosses, OutputNLR}

// Row is a flat column name to scalar mapping. Rows must contain only plain
// data as they are serialised when crossing the output queue.
type Row map[string]interface{}

// Message is the unit exchanged between trial workers and the output
// consumer: a row-set destined for one output kind.
type Message struct {
	Kind OutputKind
	Rows []Row
}

// Output schema versions. The flat schema writes one gigantic row per trial
// with a column per geography. The geo-type schema writes one row per
// (geo type, geography, metric) triple.
const (
	FlatRowSchemaVersion    = 1
	GeoTypeRowSchemaVersion = 2
	DefaultSchemaVersion    = GeoTypeRowSchemaVersion
)

// TrialContext carries the immutable identity of a single simulation trial.
type TrialContext struct {
	SimID         int
	RunTimestamp  int64
	Label         string
	States        []string
	SchemaVersion int
}

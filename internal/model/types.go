package model

import "fmt"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// EventKind is the closed set of things that can happen to a gene lineage.
type EventKind int

const (
	EventExtant EventKind = iota
	EventSpeciation
	EventDuplication
	EventLoss
	EventHgtOrigin
	EventHgtTarget
	EventGeneConversion
)

var eventNames = [...]string{
	EventExtant:         "extant",
	EventSpeciation:     "speciation",
	EventDuplication:    "duplication",
	EventLoss:           "loss",
	EventHgtOrigin:      "hgt_origin",
	EventHgtTarget:      "hgt_target",
	EventGeneConversion: "gene_conversion",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return fmt.Sprintf("event(%d)", int(k))
	}
	return eventNames[k]
}

// ParseEventKind resolves a persisted event name back to its kind.
func ParseEventKind(name string) (EventKind, error) {
	for k, n := range eventNames {
		if n == name {
			return EventKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown event kind: %q", name)
}

// Reconciliation maps a gene-tree node onto the species tree. Point events
// sit exactly on a species node; in-branch events sit strictly inside the
// edge above a species node, identified by the ordered (top, bottom) pair.
type Reconciliation struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

// PointReconciliation places an event on species node v.
func PointReconciliation(v int) Reconciliation {
	return Reconciliation{Top: v, Bottom: v}
}

// EdgeReconciliation places an event inside the species edge top -> bottom.
func EdgeReconciliation(top, bottom int) Reconciliation {
	return Reconciliation{Top: top, Bottom: bottom}
}

func (r Reconciliation) IsEdge() bool {
	return r.Top != r.Bottom
}

// Run is the persisted record of one scenario execution.
type Run struct {
	VersionedRecord
	ID           string          `json:"id"`
	CreatedAtUTC string          `json:"created_at_utc"`
	Seed         uint64          `json:"seed"`
	Families     int             `json:"families"`
	SpeciesLeafN int             `json:"species_leaf_n"`
	Summaries    []FamilySummary `json:"summaries"`
}

// FamilySummary aggregates one simulated gene family.
type FamilySummary struct {
	Index           int  `json:"index"`
	Nodes           int  `json:"nodes"`
	ExtantLeaves    int  `json:"extant_leaves"`
	Losses          int  `json:"losses"`
	Duplications    int  `json:"duplications"`
	Transfers       int  `json:"transfers"`
	GeneConversions int  `json:"gene_conversions"`
	ObservableNodes int  `json:"observable_nodes"`
	Extinct         bool `json:"extinct"`
}

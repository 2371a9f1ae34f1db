package storage

import (
	"io"

	"github.com/deploymenttheory/go-its/internal/flashfs"
	"github.com/deploymenttheory/go-its/internal/metrics"
	"github.com/deploymenttheory/go-its/pkg/app"
)

// SetRequest stores an asset
type SetRequest struct {
	Target app.AssetTarget
	Flags  []string

	// Data supplies exactly Length bytes.
	Data   io.Reader
	Length uint32
}

// SetResponse describes a stored asset
type SetResponse struct {
	Target app.AssetTarget `json:"target" yaml:"target"`
	Store  string          `json:"store" yaml:"store"`
	Length uint32          `json:"length" yaml:"length"`
	Flags  []string        `json:"flags" yaml:"flags"`
}

// GetRequest reads part of an asset
type GetRequest struct {
	Target app.AssetTarget
	Offset uint32

	// Length of zero reads to the end of the asset.
	Length uint32
}

// GetResponse carries the bytes read
type GetResponse struct {
	Target app.AssetTarget `json:"target" yaml:"target"`
	Store  string          `json:"store" yaml:"store"`
	Offset uint32          `json:"offset" yaml:"offset"`
	Data   []byte          `json:"data" yaml:"data"`
}

// InfoRequest queries asset metadata
type InfoRequest struct {
	Target app.AssetTarget
}

// InfoResponse is the metadata of an asset
type InfoResponse struct {
	Target   app.AssetTarget `json:"target" yaml:"target"`
	Store    string          `json:"store" yaml:"store"`
	Capacity uint32          `json:"capacity" yaml:"capacity"`
	Size     uint32          `json:"size" yaml:"size"`
	Flags    []string        `json:"flags" yaml:"flags"`
}

// RemoveRequest deletes an asset
type RemoveRequest struct {
	Target app.AssetTarget
}

// RemoveResponse confirms a removal
type RemoveResponse struct {
	Target app.AssetTarget `json:"target" yaml:"target"`
	Store  string          `json:"store" yaml:"store"`
}

// StoreSelector chooses the stores a maintenance request applies to
type StoreSelector struct {
	PS  bool
	All bool
}

// FormatRequest wipes stores. Confirm must be set.
type FormatRequest struct {
	Stores  StoreSelector
	Confirm bool
}

// FormatResponse lists the freshly formatted stores
type FormatResponse struct {
	Stores []flashfs.Stats `json:"stores" yaml:"stores"`
}

// InspectRequest examines the on-flash state of stores
type InspectRequest struct {
	Stores StoreSelector
}

// InspectResponse holds one report per store
type InspectResponse struct {
	Reports []flashfs.Report `json:"reports" yaml:"reports"`
}

// StatsRequest collects store counters and metrics
type StatsRequest struct {
	Stores StoreSelector
}

// StatsResponse holds the store counters and the metrics recorded while
// the runtime was open
type StatsResponse struct {
	Stores  []flashfs.Stats  `json:"stores" yaml:"stores"`
	Metrics []metrics.Sample `json:"metrics" yaml:"metrics"`
}

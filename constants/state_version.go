package constants

// Offset state file versions.
//
// Version History:
//   - Version 1: offsets keyed by querier identity, each a map of
//     incrementing / timestamp / timestamp_nanos.

const (
	LatestStateVersion = 1
)

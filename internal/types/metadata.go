package types

// Metadata is a flat string map attached to platform objects
type Metadata map[string]string

const (
	MetadataKeyRunID      = "clockwork_run_id"
	MetadataKeyTrajectory = "clockwork_trajectory"
	MetadataKeyIndex      = "clockwork_index"
)

package types

import "github.com/oklog/ulid/v2"

// RunIDPrefix marks run ids, e.g. run_01JBX6Q5T4S0D3X8Y2C9PZ7K1M
const RunIDPrefix = "run"

// NewRunID returns a k-sortable id stamped on everything one run creates
func NewRunID() string {
	return RunIDPrefix + "_" + ulid.Make().String()
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*RunConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*RunConfig) {}},
		{name: "zero count", mutate: func(r *RunConfig) { r.Count = 0 }},
		{name: "negative count", mutate: func(r *RunConfig) { r.Count = -1 }, wantErr: true},
		{name: "zero months", mutate: func(r *RunConfig) { r.Months = 0 }, wantErr: true},
		{name: "split off by ten", mutate: func(r *RunConfig) { r.ActivePct = 70 }, wantErr: true},
		{name: "paid range inverted", mutate: func(r *RunConfig) { r.MaxPaidMonths = r.MinPaidMonths - 1 }, wantErr: true},
		{name: "missing email domain", mutate: func(r *RunConfig) { r.EmailDomain = "" }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			run := GetDefaultConfig().Run
			tc.mutate(&run)
			err := run.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

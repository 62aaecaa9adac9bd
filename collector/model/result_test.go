package model_test

import (
	"testing"

	"github.com/robertof/go-thermobeacon/collector/model"
	"github.com/robertof/go-thermobeacon/device/thermobeacon"
	"github.com/stretchr/testify/assert"
)

func TestDumpResult_Sorted(t *testing.T) {
	r := model.DumpResult{
		Responses: []thermobeacon.DumpResponse{
			{Offset: 30, Count: 1, Data: []float64{3}},
			{Offset: 0, Count: 2, Data: []float64{1, 1.5}},
			{Offset: 15, Count: 1, Data: []float64{2}},
		},
	}

	sorted := r.Sorted()

	assert.Equal(t, []int{0, 15, 30}, []int{sorted[0].Offset, sorted[1].Offset, sorted[2].Offset})
	assert.Equal(t, 30, r.Responses[0].Offset, "Sorted must not reorder the original responses")
	assert.Equal(t, 4, r.Records())
}

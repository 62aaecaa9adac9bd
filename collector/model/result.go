package model

import (
	"fmt"
	"net"
	"sort"

	"github.com/robertof/go-thermobeacon/device/thermobeacon"
)

// DumpResult is the outcome of a completed history dump.
type DumpResult struct {
	Addr net.HardwareAddr
	// number of records the device reported.
	TargetCount int
	// number of records requested through dump commands.
	Requested int
	// decoded notifications, in arrival order.
	Responses []thermobeacon.DumpResponse
	// notifications that could not be decoded and were skipped.
	InvalidFrames int
}

// Records counts the values carried by all responses.
func (r DumpResult) Records() (n int) {
	for _, resp := range r.Responses {
		n += len(resp.Data)
	}

	return n
}

// Sorted returns the responses ordered by offset. The device gives no ordering guarantee.
func (r DumpResult) Sorted() []thermobeacon.DumpResponse {
	out := make([]thermobeacon.DumpResponse, len(r.Responses))
	copy(out, r.Responses)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Offset < out[j].Offset
	})

	return out
}

func (r DumpResult) String() string {
	return fmt.Sprintf("dump[addr=%v,target=%d,requested=%d,responses=%d,records=%d,invalid=%d]",
		r.Addr, r.TargetCount, r.Requested, len(r.Responses), r.Records(), r.InvalidFrames)
}

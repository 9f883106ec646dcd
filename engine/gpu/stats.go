package gpu

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// BuildStatsJSON writes a snapshot of the array occupancy: capacity, byte
// usage and the raw free-block list. Useful when chasing fragmentation.
func (a *MemoryArray) BuildStatsJSON(writer *jwriter.Writer) {
	obj := writer.Object()
	a.writeStats(&obj)
	obj.End()
}

func (a *MemoryArray) writeStats(obj *jwriter.ObjectState) {
	capacity := a.CapacityBytes()
	free := a.FreeBytes()
	obj.Name("Name").String(a.name)
	obj.Name("InstanceSize").Int(int(a.instanceSize))
	obj.Name("CapacityBytes").Int(int(capacity))
	obj.Name("AllocatedBytes").Int(int(capacity - free))
	obj.Name("FreeBytes").Int(int(free))

	blocks := obj.Name("FreeBlocks").Array()
	for _, block := range a.FreeBlocks() {
		blockObj := blocks.Object()
		blockObj.Name("Offset").Int(int(block.Offset))
		blockObj.Name("Size").Int(int(block.Size))
		blockObj.End()
	}
	blocks.End()
}

// BuildStatsJSON adds the staging occupancy on top of the base array stats.
func (a *DeviceMemoryArray) BuildStatsJSON(writer *jwriter.Writer) {
	obj := writer.Object()
	a.WriteStatsTo(&obj)
	obj.End()
}

// WriteStatsTo writes the stats fields into an object the caller opened, for
// embedding the array in a larger report.
func (a *DeviceMemoryArray) WriteStatsTo(obj *jwriter.ObjectState) {
	a.writeStats(obj)
	a.mu.Lock()
	obj.Name("StagingCapacityBytes").Int(int(a.stagingCapacity))
	obj.Name("StagingPendingBytes").Int(int(a.stagingCurrentOffset))
	obj.Name("StagingHighWaterBytes").Int(int(a.stagingHighWater))
	obj.Name("PendingWrites").Int(len(a.pendingWrites))
	a.mu.Unlock()
}

// StatsString renders BuildStatsJSON to a string.
func (a *DeviceMemoryArray) StatsString() (string, error) {
	writer := jwriter.NewWriter()
	a.BuildStatsJSON(&writer)
	if err := writer.Error(); err != nil {
		return "", err
	}
	return string(writer.Bytes()), nil
}

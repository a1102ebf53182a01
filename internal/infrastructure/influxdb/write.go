package influxdb

import (
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/kommander-bridge/internal/bridges/kommander"
)

// FacetMeasurement is the measurement every facet change is written to.
const FacetMeasurement = "kommander_facet"

// FacetChanged implements kommander.StateObserver by queueing one point.
func (c *Client) FacetChanged(change kommander.FacetChange) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(facetPoint(c.instance, change))
}

// facetPoint builds the point for a change. The field key follows the value
// type so a field never changes type within the measurement:
//
//	kommander_facet,facet=mute,instance_id=stage bool=true
//	kommander_facet,facet=plan_index,instance_id=stage int=4i
//	kommander_facet,facet=play_status,instance_id=stage int=1i,text="play"
func facetPoint(instance string, change kommander.FacetChange) *write.Point {
	at := change.At
	if at.IsZero() {
		at = time.Now()
	}
	tags := map[string]string{
		"instance_id": instance,
		"facet":       string(change.Facet),
	}
	return write.NewPoint(FacetMeasurement, tags, facetFields(change.Value), at)
}

func facetFields(v any) map[string]any {
	switch val := v.(type) {
	case bool:
		return map[string]any{"bool": val}
	case int:
		return map[string]any{"int": int64(val)}
	case int64:
		return map[string]any{"int": val}
	case kommander.PlayState:
		return map[string]any{"int": int64(val), "text": val.String()}
	case string:
		return map[string]any{"text": val}
	default:
		return map[string]any{"text": fmt.Sprint(val)}
	}
}

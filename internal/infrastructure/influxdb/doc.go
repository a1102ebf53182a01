// Package influxdb records Kommander facet changes as time-series points.
//
// Every change observed by the bridge becomes one point in the
// kommander_facet measurement, tagged with the instance and facet name.
// The Client implements kommander.StateObserver, so it is passed to the
// bridge as an observer:
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Instance.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { log.Warn("influx write", "error", err) })
//
// Writes are batched according to batch_size and flush_interval.
package influxdb

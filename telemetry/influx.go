package telemetry

import (
	"context"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"go.viam.com/utils"

	"go.viam.com/waypointfollower/logging"
)

// InfluxWriter writes samples to an InfluxDB 2 bucket through the non-blocking write API.
type InfluxWriter struct {
	client   influxdb2.Client
	writeAPI api.WriteApi
	workers  *utils.StoppableWorkers
}

// NewInfluxWriter connects to the server at url. Write errors are logged.
func NewInfluxWriter(url, token, org, bucket string, logger logging.Logger) *InfluxWriter {
	client := influxdb2.NewClient(url, token)
	writeAPI := client.WriteApi(org, bucket)
	errorsCh := writeAPI.Errors()
	return &InfluxWriter{
		client:   client,
		writeAPI: writeAPI,
		workers: utils.NewBackgroundStoppableWorkers(func(ctx context.Context) {
			for {
				select {
				case <-ctx.Done():
					return
				case err, ok := <-errorsCh:
					if !ok {
						return
					}
					logger.Warnw("telemetry write error", "error", err)
				}
			}
		}),
	}
}

// Write queues the sample.
func (w *InfluxWriter) Write(s Sample) {
	w.writeAPI.WritePoint(influxdb2.NewPoint(s.Measurement, s.Tags, s.Fields, s.Time))
}

// Flush sends everything queued so far.
func (w *InfluxWriter) Flush() {
	w.writeAPI.Flush()
}

// Close flushes pending samples and releases the client.
func (w *InfluxWriter) Close() error {
	w.writeAPI.Flush()
	w.writeAPI.Close()
	w.workers.Stop()
	w.client.Close()
	return nil
}

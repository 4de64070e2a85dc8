// Package metrics emits CloudWatch Embedded Metric Format (EMF) documents
// for the webhook pipeline. EMF metrics are written as structured JSON to
// stdout, where CloudWatch extracts them — no API calls and no added
// latency on the request path.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// namespace is the CloudWatch namespace for all pipeline metrics.
const namespace = "LeafDoctor/Pipeline"

// Standard CloudWatch metric units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
)

type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

type emfDirective struct {
	Timestamp         int64      `json:"Timestamp"`
	CloudWatchMetrics []cwMetric `json:"CloudWatchMetrics"`
}

type cwMetric struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []metricDef `json:"Metrics"`
}

// Recorder accumulates metrics and properties for one pipeline invocation
// and flushes them as a single EMF document. Not safe for concurrent use;
// create one per invocation.
type Recorder struct {
	out        io.Writer
	dimensions map[string]string
	metrics    map[string]metricDef
	values     map[string]any
	properties map[string]any
}

// NewPipeline creates a Recorder for one webhook invocation. The
// FunctionName dimension is filled from the Lambda environment when present.
func NewPipeline() *Recorder {
	r := &Recorder{
		out:        os.Stdout,
		dimensions: make(map[string]string),
		metrics:    make(map[string]metricDef),
		values:     make(map[string]any),
		properties: make(map[string]any),
	}
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		r.dimensions["FunctionName"] = fn
	}
	return r
}

// Stage records the duration of a named pipeline stage (fetch, store,
// diagnose, send) as a <Name>Ms metric.
func (r *Recorder) Stage(name string, d time.Duration) *Recorder {
	return r.Metric(name+"Ms", float64(d.Milliseconds()), UnitMilliseconds)
}

// Outcome records the HTTP status returned to the dispatcher, both as a
// filterable dimension and as an invocation counter.
func (r *Recorder) Outcome(status int) *Recorder {
	r.dimensions["Status"] = fmt.Sprintf("%d", status)
	return r.Metric("Invocations", 1, UnitCount)
}

// Metric records a named metric value with a CloudWatch unit.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	r.metrics[name] = metricDef{Name: name, Unit: unit}
	r.values[name] = value
	return r
}

// Property adds a non-metric field to the EMF document. Properties are
// searchable in CloudWatch Logs Insights but create no metrics.
func (r *Recorder) Property(key string, value any) *Recorder {
	r.properties[key] = value
	return r
}

// Flush serializes the EMF document as a single JSON line. After flushing,
// the Recorder must not be reused.
func (r *Recorder) Flush() {
	if len(r.metrics) == 0 {
		return
	}

	doc := make(map[string]any)

	metricDefs := make([]metricDef, 0, len(r.metrics))
	for _, m := range r.metrics {
		metricDefs = append(metricDefs, m)
	}
	dimKeys := make([]string, 0, len(r.dimensions))
	for k := range r.dimensions {
		dimKeys = append(dimKeys, k)
	}

	doc["_aws"] = emfDirective{
		Timestamp: time.Now().UnixMilli(),
		CloudWatchMetrics: []cwMetric{{
			Namespace:  namespace,
			Dimensions: [][]string{dimKeys},
			Metrics:    metricDefs,
		}},
	}
	for k, v := range r.dimensions {
		doc[k] = v
	}
	for k, v := range r.values {
		doc[k] = v
	}
	for k, v := range r.properties {
		doc[k] = v
	}

	data, err := json.Marshal(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emf: failed to marshal metrics: %v\n", err)
		return
	}

	// EMF must be a single line.
	fmt.Fprintln(r.out, string(data))
}

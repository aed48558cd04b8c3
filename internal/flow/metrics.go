package flow

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/streamops/streamcheck/pkg/types"
)

const metricNamespace = "AWS/MediaConnect"

// datapoint is one time-ordered metric reading.
type datapoint struct {
	at    time.Time
	value float64
}

// sourceMetrics holds the four metric windows a flow's source health is
// judged on.
type sourceMetrics struct {
	bitrate      []datapoint
	recovered    []datapoint
	notRecovered []datapoint
	connected    []datapoint
}

// windowAnalysis is the reduced view of one metric window.
type windowAnalysis struct {
	avgBitrate    float64
	bitrateStable bool
	recovered     int64
	notRecovered  int64
	connection    types.ConnectionState
}

// fetchSourceMetrics pulls the lookback window for every source metric.
func (v *Validator) fetchSourceMetrics(ctx context.Context, client CloudWatchAPI, flowARN string) (sourceMetrics, error) {
	end := time.Now().UTC()
	start := end.Add(-v.cfg.Lookback)
	period := int32(v.cfg.Period / time.Second)

	var sm sourceMetrics
	for _, q := range []struct {
		name string
		stat cwtypes.Statistic
		dst  *[]datapoint
	}{
		{"SourceBitRate", cwtypes.StatisticAverage, &sm.bitrate},
		{"SourceRecoveredPackets", cwtypes.StatisticSum, &sm.recovered},
		{"SourceNotRecoveredPackets", cwtypes.StatisticSum, &sm.notRecovered},
		{"Connected", cwtypes.StatisticMinimum, &sm.connected},
	} {
		out, err := client.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
			Namespace:  aws.String(metricNamespace),
			MetricName: aws.String(q.name),
			Dimensions: []cwtypes.Dimension{{Name: aws.String("FlowARN"), Value: aws.String(flowARN)}},
			StartTime:  aws.Time(start),
			EndTime:    aws.Time(end),
			Period:     aws.Int32(period),
			Statistics: []cwtypes.Statistic{q.stat},
		})
		if err != nil {
			return sourceMetrics{}, fmt.Errorf("fetching %s: %w", q.name, err)
		}
		*q.dst = toSeries(out.Datapoints, q.stat)
	}
	return sm, nil
}

// toSeries extracts the requested statistic and orders the datapoints by
// timestamp; CloudWatch returns them unsorted.
func toSeries(points []cwtypes.Datapoint, stat cwtypes.Statistic) []datapoint {
	out := make([]datapoint, 0, len(points))
	for _, dp := range points {
		if dp.Timestamp == nil {
			continue
		}
		var v *float64
		switch stat {
		case cwtypes.StatisticAverage:
			v = dp.Average
		case cwtypes.StatisticSum:
			v = dp.Sum
		case cwtypes.StatisticMinimum:
			v = dp.Minimum
		case cwtypes.StatisticMaximum:
			v = dp.Maximum
		}
		if v == nil {
			continue
		}
		out = append(out, datapoint{at: *dp.Timestamp, value: *v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })
	return out
}

// analyze reduces a metric window to the health fields of a flow record.
//
// Bitrate is stable only when the window has data, its coefficient of
// variation stays within BitrateCVMax, and no sample drops below
// BitrateDropFraction of the window mean. Connection state follows the most
// recent Connected datapoint; an empty series is UNKNOWN, never a guess.
func analyze(sm sourceMetrics, cfg types.FlowCheckConfig) windowAnalysis {
	a := windowAnalysis{connection: types.ConnectionUnknown}

	if n := len(sm.bitrate); n > 0 {
		var sum float64
		for _, dp := range sm.bitrate {
			sum += dp.value
		}
		mean := sum / float64(n)
		a.avgBitrate = mean

		if mean > 0 {
			var sq float64
			low := false
			for _, dp := range sm.bitrate {
				d := dp.value - mean
				sq += d * d
				if dp.value < cfg.BitrateDropFraction*mean {
					low = true
				}
			}
			cv := math.Sqrt(sq/float64(n)) / mean
			a.bitrateStable = cv <= cfg.BitrateCVMax && !low
		}
	}

	for _, dp := range sm.recovered {
		a.recovered += int64(dp.value)
	}
	for _, dp := range sm.notRecovered {
		a.notRecovered += int64(dp.value)
	}

	if n := len(sm.connected); n > 0 {
		if sm.connected[n-1].value >= 1 {
			a.connection = types.ConnectionConnected
		} else {
			a.connection = types.ConnectionDisconnected
		}
	}
	return a
}

package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/streamops/streamcheck/pkg/types"
)

// DispatchFlowVerdicts fans one alert per degraded flow record to the
// configured sinks. The probe engine alerts on endpoint verdicts itself;
// flow records alert here.
func (d *Dispatcher) DispatchFlowVerdicts(ctx context.Context, amgid string, flows []types.FlowHealthRecord) {
	for _, rec := range flows {
		var level types.AlertLevel
		switch rec.Verdict {
		case types.VerdictFail:
			level = types.AlertLevelError
		case types.VerdictWarning:
			level = types.AlertLevelWarning
		default:
			continue
		}
		target := rec.Name
		if target == "" {
			target = rec.FlowARN
		}
		msg := fmt.Sprintf("flow %s: state=%s connection=%s", target, rec.State, rec.Connection)
		if rec.Error != "" {
			msg = fmt.Sprintf("flow %s: %s", target, rec.Error)
		}
		d.Dispatch(ctx, types.Alert{
			Level:     level,
			AMGID:     amgid,
			Target:    target,
			Message:   msg,
			Timestamp: time.Now().UTC(),
		})
	}
}

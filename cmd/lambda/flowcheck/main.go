// flowcheck Lambda scans MediaConnect flow health for a set of AMGIDs.
// Invoked by EventBridge on a regular interval (e.g. every 5 minutes).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	intlambda "github.com/streamops/streamcheck/internal/lambda"
	"github.com/streamops/streamcheck/internal/report"
	"github.com/streamops/streamcheck/pkg/types"
)

var (
	deps     *intlambda.Deps
	depsOnce sync.Once
	depsErr  error
)

func getDeps() (*intlambda.Deps, error) {
	depsOnce.Do(func() {
		deps, depsErr = intlambda.Init(context.Background())
	})
	return deps, depsErr
}

func handler(ctx context.Context, req intlambda.FlowCheckRequest) (intlambda.FlowCheckResponse, error) {
	d, err := getDeps()
	if err != nil {
		return intlambda.FlowCheckResponse{}, err
	}

	amgids := req.AMGIDs
	if len(amgids) == 0 {
		amgids = d.AMGIDs
	}
	if len(amgids) == 0 {
		return intlambda.FlowCheckResponse{}, fmt.Errorf("no AMGIDs in event payload or AMGIDS environment variable")
	}

	resp := intlambda.FlowCheckResponse{RunID: report.NewRunID()}
	for _, amgid := range amgids {
		arns, err := d.Flows.DiscoverByAMGID(ctx, amgid)
		if err != nil {
			d.Logger.Error("flow discovery failed", "amgid", amgid, "error", err)
			continue
		}
		if len(arns) == 0 {
			d.Logger.Warn("no flows tagged with AMGID", "amgid", amgid)
			continue
		}

		records := d.Flows.ValidateAll(ctx, arns, d.Workers)
		d.Alerts.DispatchFlowVerdicts(ctx, amgid, records)

		for _, rec := range records {
			resp.Scanned++
			switch rec.Verdict {
			case types.VerdictFail:
				resp.Failures++
			case types.VerdictWarning:
				resp.Warnings++
			default:
				resp.Passed++
			}
		}
	}

	d.Logger.Info("flowcheck scan complete",
		"run_id", resp.RunID,
		"amgids", len(amgids),
		"scanned", resp.Scanned,
		"failures", resp.Failures,
		"warnings", resp.Warnings,
	)
	return resp, nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	awslambda.Start(handler)
}

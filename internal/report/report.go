// Package report renders and persists validation run outcomes: CSV summaries
// in the operational report layout, a full JSON dump, colored console output,
// and optional S3 archival.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/streamops/streamcheck/internal/metrics"
	"github.com/streamops/streamcheck/pkg/types"
)

// NewRunID returns a sortable unique ID for one validation run.
func NewRunID() string {
	return ulid.Make().String()
}

// Writer persists run reports under a local directory.
type Writer struct {
	dir string
}

// NewWriter creates a report writer rooted at dir, creating it if needed.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "reports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating reports dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the reports directory.
func (w *Writer) Dir() string { return w.dir }

var cdnHeader = []string{
	"HLS URL",
	"Status",
	"MSN Status",
	"Audio Silence",
	"Audio Distortion",
	"Black Frames",
	"Freeze Frames",
}

// WriteCDNCSV writes one row per CDN endpoint verdict and returns the path.
func (w *Writer) WriteCDNCSV(r types.Report) (string, error) {
	path := filepath.Join(w.dir, fmt.Sprintf("CDN_Test_Report_%s.csv", r.RunID))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	cw := csv.NewWriter(f)
	if err := cw.Write(cdnHeader); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	for _, v := range r.Endpoints {
		row := []string{
			v.Endpoint.URL,
			string(v.Level),
			string(v.Signals.Liveness),
			yesNo(v.Signals.Silence),
			yesNo(v.Signals.Distortion),
			yesNo(v.Signals.BlackFrames),
			yesNo(v.Signals.FrozenFrames),
		}
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flushing %s: %w", path, err)
	}
	metrics.ReportsWritten.Add(1)
	return path, nil
}

var flowHeader = []string{
	"AMGID",
	"Flow Name",
	"Flow ARN",
	"Flow Status",
	"Entitlement Names",
	"Entitlement Statuses",
	"Bitrate Stable",
	"Recovered Packets",
	"Lost Packets",
	"Connection Status",
}

// WriteFlowCSV writes the MediaConnect report and returns the path. Each flow
// contributes one identical row per output (minimum one) so downstream sheets
// line rows up against delivery outputs.
func (w *Writer) WriteFlowCSV(r types.Report) (string, error) {
	path := filepath.Join(w.dir, fmt.Sprintf("MediaConnect_Report_%s_%s.csv", r.AMGID, r.RunID))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	cw := csv.NewWriter(f)
	if err := cw.Write(flowHeader); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	for _, rec := range r.Flows {
		row := flowRow(r.AMGID, rec)
		rows := rec.Outputs
		if rows < 1 {
			rows = 1
		}
		for i := 0; i < rows; i++ {
			if err := cw.Write(row); err != nil {
				return "", fmt.Errorf("writing row: %w", err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flushing %s: %w", path, err)
	}
	metrics.ReportsWritten.Add(1)
	return path, nil
}

// WriteJSON dumps the full report and returns the path.
func (w *Writer) WriteJSON(r types.Report) (string, error) {
	path := filepath.Join(w.dir, fmt.Sprintf("Report_%s.json", r.RunID))
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	metrics.ReportsWritten.Add(1)
	return path, nil
}

func flowRow(amgid string, rec types.FlowHealthRecord) []string {
	name := rec.Name
	if name == "" {
		name = "Not Found"
	}
	status := rec.Status
	if status == "" {
		status = "N/A"
	}

	names := make([]string, 0, len(rec.Entitlements))
	states := make([]string, 0, len(rec.Entitlements))
	for _, e := range rec.Entitlements {
		names = append(names, e.Name)
		states = append(states, e.Status)
	}
	entNames := strings.Join(names, ", ")
	if entNames == "" {
		entNames = "None"
	}
	entStates := strings.Join(states, ", ")
	if entStates == "" {
		entStates = "None"
	}

	stable := "No"
	if rec.BitrateStable {
		stable = "Yes"
	}

	return []string{
		amgid,
		name,
		rec.FlowARN,
		status,
		entNames,
		entStates,
		stable,
		strconv.FormatInt(rec.RecoveredPackets, 10),
		strconv.FormatInt(rec.NotRecoveredPackets, 10),
		string(rec.Connection),
	}
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

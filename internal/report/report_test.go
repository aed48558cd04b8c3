package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamops/streamcheck/pkg/types"
)

func sampleReport() types.Report {
	return types.Report{
		RunID:     "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		AMGID:     "DISCO01",
		StartedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Duration:  95 * time.Second,
		Endpoints: []types.EndpointVerdict{
			{
				Endpoint: types.DeliveryEndpoint{
					ID:   "disco-main",
					Kind: types.KindCDN,
					URL:  "https://cdn.example.com/disco/playlist.m3u8",
				},
				Level: types.VerdictPass,
				Signals: types.Signals{
					Liveness: types.LivenessLive,
					Bitrate:  types.BitrateValid,
				},
			},
			{
				Endpoint: types.DeliveryEndpoint{
					ID:   "disco-backup",
					Kind: types.KindCDN,
					URL:  "https://backup.example.com/disco/playlist.m3u8",
				},
				Level: types.VerdictFail,
				Signals: types.Signals{
					Liveness:     types.LivenessFrozen,
					Silence:      true,
					FrozenFrames: true,
					Bitrate:      types.BitrateValid,
				},
			},
		},
		Flows: []types.FlowHealthRecord{
			{
				FlowARN: "arn:aws:mediaconnect:us-east-1:123456789012:flow:1-aaaa:disco-main",
				Name:    "disco-main",
				Region:  "us-east-1",
				Status:  "ACTIVE",
				State:   types.FlowHealthy,
				Entitlements: []types.Entitlement{
					{Name: "partner-a", Status: "ENABLED"},
					{Name: "partner-b", Status: "DISABLED"},
				},
				Outputs:          2,
				OutputsComplete:  true,
				AvgBitrate:       20e6,
				BitrateStable:    true,
				RecoveredPackets: 12,
				Connection:       types.ConnectionConnected,
				Verdict:          types.VerdictPass,
			},
			{
				FlowARN:    "arn:aws:mediaconnect:us-east-1:123456789012:flow:1-bbbb:gone",
				Region:     "us-east-1",
				State:      types.FlowUnhealthy,
				Connection: types.ConnectionUnknown,
				Verdict:    types.VerdictFail,
				Error:      "DescribeFlow failed: flow not found",
			},
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteCDNCSV(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	path, err := w.WriteCDNCSV(sampleReport())
	require.NoError(t, err)
	assert.Contains(t, path, "CDN_Test_Report_01ARZ3NDEKTSV4RRFFQ69G5FAV.csv")

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, cdnHeader, rows[0])
	assert.Equal(t, []string{
		"https://cdn.example.com/disco/playlist.m3u8",
		"PASS", "LIVE", "NO", "NO", "NO", "NO",
	}, rows[1])
	assert.Equal(t, []string{
		"https://backup.example.com/disco/playlist.m3u8",
		"FAIL", "FROZEN", "YES", "NO", "NO", "YES",
	}, rows[2])
}

func TestWriteFlowCSV(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	path, err := w.WriteFlowCSV(sampleReport())
	require.NoError(t, err)
	assert.Contains(t, path, "MediaConnect_Report_DISCO01_01ARZ3NDEKTSV4RRFFQ69G5FAV.csv")

	rows := readCSV(t, path)
	// Header + two rows for the two-output flow + one row for the failed flow.
	require.Len(t, rows, 4)
	assert.Equal(t, flowHeader, rows[0])

	assert.Equal(t, []string{
		"DISCO01",
		"disco-main",
		"arn:aws:mediaconnect:us-east-1:123456789012:flow:1-aaaa:disco-main",
		"ACTIVE",
		"partner-a, partner-b",
		"ENABLED, DISABLED",
		"Yes",
		"12",
		"0",
		"CONNECTED",
	}, rows[1])
	assert.Equal(t, rows[1], rows[2])

	assert.Equal(t, []string{
		"DISCO01",
		"Not Found",
		"arn:aws:mediaconnect:us-east-1:123456789012:flow:1-bbbb:gone",
		"N/A",
		"None",
		"None",
		"No",
		"0",
		"0",
		"UNKNOWN",
	}, rows[3])
}

func TestWriteJSON(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	path, err := w.WriteJSON(sampleReport())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got types.Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "DISCO01", got.AMGID)
	require.Len(t, got.Endpoints, 2)
	assert.Equal(t, types.VerdictFail, got.Endpoints[1].Level)
	require.Len(t, got.Flows, 2)
	assert.Equal(t, 2, got.Flows[0].Outputs)
}

func TestNewWriter_CreatesDir(t *testing.T) {
	dir := t.TempDir() + "/nested/reports"
	w, err := NewWriter(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, w.Dir())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewRunID(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}

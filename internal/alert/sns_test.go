package alert

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamops/streamcheck/pkg/types"
)

type mockSNS struct {
	published []*sns.PublishInput
	err       error
}

func (m *mockSNS) Publish(_ context.Context, input *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.published = append(m.published, input)
	return &sns.PublishOutput{}, m.err
}

func TestSNSSink_Send(t *testing.T) {
	mock := &mockSNS{}
	sink, err := NewSNSSink("arn:aws:sns:us-east-1:123456789:stream-alerts", WithSNSClient(mock))
	require.NoError(t, err)

	alert := types.Alert{
		Level:     types.AlertLevelError,
		AMGID:     "DISCO01",
		Target:    "disco-main",
		Message:   "endpoint disco-main verdict FAIL",
		Timestamp: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}

	err = sink.Send(context.Background(), alert)
	require.NoError(t, err)

	require.Len(t, mock.published, 1)
	pub := mock.published[0]
	assert.Equal(t, "arn:aws:sns:us-east-1:123456789:stream-alerts", *pub.TopicArn)
	assert.Equal(t, "[error] DISCO01", *pub.Subject)

	var decoded types.Alert
	require.NoError(t, json.Unmarshal([]byte(*pub.Message), &decoded))
	assert.Equal(t, types.AlertLevelError, decoded.Level)
	assert.Equal(t, "DISCO01", decoded.AMGID)
	assert.Equal(t, "endpoint disco-main verdict FAIL", decoded.Message)
}

func TestSNSSink_Name(t *testing.T) {
	sink, err := NewSNSSink("arn:aws:sns:us-east-1:123456789:stream-alerts", WithSNSClient(&mockSNS{}))
	require.NoError(t, err)
	assert.Equal(t, "sns", sink.Name())
}

func TestSNSSink_EmptyTopicARN(t *testing.T) {
	_, err := NewSNSSink("")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "topic ARN required")
}

func TestSNSSink_SubjectFallbackAndTruncation(t *testing.T) {
	mock := &mockSNS{}
	sink, err := NewSNSSink("arn:aws:sns:us-east-1:123456789:stream-alerts", WithSNSClient(mock))
	require.NoError(t, err)

	err = sink.Send(context.Background(), types.Alert{
		Level:     types.AlertLevelWarning,
		Message:   "watcher cycle degraded",
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, "[warning] streamcheck", *mock.published[0].Subject)

	long := types.Alert{
		Level:     types.AlertLevelWarning,
		AMGID:     "this-is-a-very-long-channel-identifier-that-exceeds-the-subject-length-limit-for-sns-messages-in-practice",
		Message:   "test",
		Timestamp: time.Now(),
	}
	require.NoError(t, sink.Send(context.Background(), long))
	assert.LessOrEqual(t, len(*mock.published[1].Subject), 100)
}

func TestSNSSink_PublishError(t *testing.T) {
	sink, err := NewSNSSink("arn:aws:sns:us-east-1:123456789:stream-alerts", WithSNSClient(&mockSNS{err: assert.AnError}))
	require.NoError(t, err)

	err = sink.Send(context.Background(), types.Alert{Level: types.AlertLevelError, Message: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publishing to SNS")
}

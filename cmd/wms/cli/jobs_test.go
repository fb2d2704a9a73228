package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-wms/jobs"
)

type stubEnqueuer struct {
	tasks []*asynq.Task
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "t-1", Queue: jobs.QueueDefault, Type: task.Type()}, nil
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestRunTriggerExpiryNotice(t *testing.T) {
	enq := &stubEnqueuer{}
	c := &JobsCLI{client: enq}
	var out bytes.Buffer

	code := c.Run(context.Background(), []string{"trigger", jobs.TaskPasswordExpiryNotice, "-days", "3"}, &out)
	require.Equal(t, 0, code, out.String())
	require.Len(t, enq.tasks, 1)

	var payload jobs.ExpiryNoticePayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, 3, payload.Days)
	require.Contains(t, out.String(), "id=t-1")
}

func TestRunTriggerRejectsUnknownTask(t *testing.T) {
	c := &JobsCLI{client: &stubEnqueuer{}}
	var out bytes.Buffer
	require.Equal(t, 1, c.Run(context.Background(), []string{"trigger", "mail:send"}, &out))
	require.Equal(t, 2, c.Run(context.Background(), []string{"trigger"}, &out))
	require.Equal(t, 2, c.Run(context.Background(), []string{"explode"}, &out))
}

func TestRunStats(t *testing.T) {
	c := &JobsCLI{inspector: stubInspector{info: &asynq.QueueInfo{Pending: 2, Retry: 1}}}
	var out bytes.Buffer
	require.Equal(t, 0, c.Run(context.Background(), []string{"stats"}, &out))
	require.Contains(t, out.String(), "pending=2")

	c = &JobsCLI{inspector: stubInspector{err: errors.New("redis down")}}
	require.Equal(t, 1, c.Run(context.Background(), []string{"stats"}, &out))
}

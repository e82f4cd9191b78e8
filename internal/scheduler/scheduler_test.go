package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/uni-helper/internal/model"
	"github.com/nhle/uni-helper/tests/testutil"
)

type recordingNotifier struct {
	sent []int64
	fail map[int64]bool
}

func (n *recordingNotifier) SendReminder(_ context.Context, a model.Assignment) error {
	if n.fail[a.ID] {
		return errors.New("smtp down")
	}
	n.sent = append(n.sent, a.ID)
	return nil
}

func TestNextRun(t *testing.T) {
	testCases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			"later today",
			time.Date(2024, 10, 20, 7, 30, 0, 0, time.UTC),
			time.Date(2024, 10, 20, 9, 0, 0, 0, time.UTC),
		},
		{
			"already passed",
			time.Date(2024, 10, 20, 9, 0, 0, 0, time.UTC),
			time.Date(2024, 10, 21, 9, 0, 0, 0, time.UTC),
		},
		{
			"non-UTC input",
			time.Date(2024, 10, 20, 8, 0, 0, 0, time.FixedZone("X", 2*3600)),
			time.Date(2024, 10, 20, 9, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.want.Equal(NextRun(tc.now, 9, 0)))
		})
	}
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 10, 24, 9, 0, 0, 0, time.UTC)
	st := testutil.NewTestStore(t)
	st.SetClock(func() time.Time { return now })

	c, err := st.GetOrCreateClass(ctx, "Data Mining")
	require.NoError(t, err)
	soon, err := st.CreateAssignment(ctx, model.Assignment{ClassID: c.ID, Title: "soon", DueDate: now.Add(12 * time.Hour)})
	require.NoError(t, err)
	flaky, err := st.CreateAssignment(ctx, model.Assignment{ClassID: c.ID, Title: "flaky", DueDate: now.Add(20 * time.Hour)})
	require.NoError(t, err)
	_, err = st.CreateAssignment(ctx, model.Assignment{ClassID: c.ID, Title: "later", DueDate: now.Add(72 * time.Hour)})
	require.NoError(t, err)

	n := &recordingNotifier{fail: map[int64]bool{flaky: true}}
	s := New(st, n, model.ReminderConfig{Time: "09:00", HoursBefore: 24}, zerolog.Nop())

	sent, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []int64{soon}, n.sent)

	// The failed one is retried, the sent one is not repeated.
	n.fail = nil
	sent, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []int64{soon, flaky}, n.sent)
}

func TestNewDefaultsInvalidTime(t *testing.T) {
	s := New(nil, nil, model.ReminderConfig{Time: "25:99"}, zerolog.Nop())
	assert.Equal(t, 9, s.hour)
	assert.Equal(t, 0, s.minute)
	assert.Equal(t, 24*time.Hour, s.within)
}

func TestStartStop(t *testing.T) {
	s := New(nil, nil, model.ReminderConfig{Time: "09:00"}, zerolog.Nop())
	s.Start(context.Background())
	s.Start(context.Background())

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

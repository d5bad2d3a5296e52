package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"course-tracker-backend/config"
)

type recordingNotifier struct {
	messages []string
	err      error
}

func (r *recordingNotifier) Send(_ context.Context, message string) error {
	r.messages = append(r.messages, message)
	return r.err
}

func TestMulti_SendsToAllAndJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: errors.New("boom")}
	last := &recordingNotifier{}

	err := Multi{ok, failing, last, NewLogNotifier(zap.NewNop())}.Send(context.Background(), "hello")

	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"hello"}, ok.messages)
	assert.Equal(t, []string{"hello"}, failing.messages)
	assert.Equal(t, []string{"hello"}, last.messages)

	assert.NoError(t, Multi{ok}.Send(context.Background(), "again"))
}

func TestRedisNotifier_Publishes(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(&config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, "gym-class-tracker")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	n := NewRedisNotifier(client, "gym-class-tracker")
	require.NoError(t, n.Send(ctx, "TRACKING STARTED: You are now tracking X"))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "gym-class-tracker", msg.Channel)
		assert.Equal(t, "TRACKING STARTED: You are now tracking X", msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestRedisNotifier_FailsWhenServerGone(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	err := NewRedisNotifier(client, "c").Send(context.Background(), "msg")
	assert.Error(t, err)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(&config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}

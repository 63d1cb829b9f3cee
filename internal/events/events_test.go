package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
	closed        bool
}

func (f *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublish(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{channel: ch, exchange: "waste-reports"}

	err := p.Publish(context.Background(), ReportResolved, map[string]string{"report_code": "WR-1"})
	require.NoError(t, err)

	assert.Equal(t, "waste-reports", ch.exchange)
	assert.Equal(t, ReportResolved, ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var env struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ch.msg.Body, &env))
	assert.Equal(t, ReportResolved, env.Type)
	assert.Equal(t, "WR-1", env.Data["report_code"])

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublishErrors(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := &AMQPPublisher{channel: ch, exchange: "x"}
	assert.Error(t, p.Publish(context.Background(), ReportCreated, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, ReportCreated, nil), context.Canceled)

	assert.Error(t, p.Publish(context.Background(), ReportCreated, func() {}))
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), ReportCreated, nil))
	assert.NoError(t, p.Close())
}

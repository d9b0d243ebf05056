package broker_test

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/miladsoleymani/mockjms/broker"
	"github.com/miladsoleymani/mockjms/core"
)

func TestCreateMock(t *testing.T) {
	t.Parallel()

	cfg := broker.DefaultConfig()
	cfg.ClientID = "svc"
	cfg.Queues = []string{"orders"}
	cfg.Topics = []string{"prices"}

	f, err := broker.Create("mock", cfg)
	assert.NilError(t, err)
	assert.Assert(t, f.DestinationManager().Queue("orders") != nil)
	assert.Assert(t, f.DestinationManager().Topic("prices") != nil)

	conn, err := f.CreateConnection()
	assert.NilError(t, err)
	assert.Equal(t, conn.ClientID(), "svc")
}

func TestCreateUnknown(t *testing.T) {
	t.Parallel()

	_, err := broker.Create("activemq", broker.DefaultConfig())
	assert.ErrorContains(t, err, `unknown factory "activemq"`)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	broker.Register("failing", func(broker.Config, ...core.Option) (*core.ConnectionFactory, error) {
		return nil, boom
	})
	_, err := broker.Create("failing", broker.DefaultConfig())
	assert.ErrorIs(t, err, boom)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := broker.DefaultConfig()
	cfg.Log.Level = "verbose"
	_, err := broker.New(cfg)
	assert.ErrorContains(t, err, "invalid configuration")
}

package kafka

import (
	"testing"

	"github.com/Shopify/sarama"
	"github.com/flexprice/retainer/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestGetSaramaConfig(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Event.ClientID = "retainer-test"

	sc := GetSaramaConfig(cfg)

	assert.Equal(t, "retainer-test", sc.ClientID)
	assert.Equal(t, sarama.WaitForAll, sc.Producer.RequiredAcks)
	assert.True(t, sc.Producer.Return.Successes)
	assert.Equal(t, sarama.OffsetOldest, sc.Consumer.Offsets.Initial)
	assert.NoError(t, sc.Validate())
}

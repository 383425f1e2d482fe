package bus

import (
	"strings"

	"github.com/ricesearch/kgeval/internal/config"
	"github.com/ricesearch/kgeval/internal/pkg/errors"
	"github.com/ricesearch/kgeval/internal/pkg/logger"
)

// NewBus creates a new Bus instance based on the configuration.
func NewBus(cfg config.BusConfig, log *logger.Logger) (Bus, error) {
	switch strings.ToLower(cfg.Type) {
	case "none", "":
		return NopBus{}, nil

	case "memory":
		return NewMemoryBus(log), nil

	case "kafka":
		brokers := ParseKafkaBrokers(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, errors.New(errors.CodeValidation, "kafka brokers not configured")
		}

		return NewKafkaBus(KafkaConfig{
			Brokers:       brokers,
			ConsumerGroup: DefaultConsumerGroup,
			ClientID:      DefaultClientID,
		}, log)

	default:
		return nil, errors.ConfigError("bus type", cfg.Type)
	}
}

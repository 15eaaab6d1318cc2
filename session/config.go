package session

// Config holds session defaults.
type Config struct {
	DefaultTopic string `json:"default_topic,omitempty" yaml:"default_topic,omitempty"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{DefaultTopic: DefaultTopic}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.DefaultTopic != "" {
		c.DefaultTopic = source.DefaultTopic
	}
}

// NewFromConfig starts a session on topic, falling back to the configured
// default topic.
func NewFromConfig(cfg *Config, topic string) *State {
	if topic == "" {
		topic = cfg.DefaultTopic
	}
	return New(topic)
}

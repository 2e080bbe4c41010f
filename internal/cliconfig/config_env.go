package cliconfig

import "os"

// ApplyEnvConfig applies SAMPLESHIP_* environment variables to cfg.
// Environment overrides the config file but is overridden by explicitly
// set flags (changed map).
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("device-id", os.Getenv("SAMPLESHIP_DEVICE_ID"), &cfg.DeviceID)
	s.setString("receiver-endpoint", os.Getenv("SAMPLESHIP_RECEIVER_ENDPOINT"), &cfg.ReceiverEndpoint)
	s.setString("cert-file", os.Getenv("SAMPLESHIP_CERT_FILE"), &cfg.CertFile)
	s.setString("key-file", os.Getenv("SAMPLESHIP_KEY_FILE"), &cfg.KeyFile)
	s.setString("ca-file", os.Getenv("SAMPLESHIP_CA_FILE"), &cfg.CAFile)
	s.setString("data-dir", os.Getenv("SAMPLESHIP_DATA_DIR"), &cfg.DataDir)
	s.setString("buffer-dir", os.Getenv("SAMPLESHIP_BUFFER_DIR"), &cfg.BufferDir)
	s.setString("error-dir", os.Getenv("SAMPLESHIP_ERROR_DIR"), &cfg.ErrorDir)
	s.setString("inbox-dir", os.Getenv("SAMPLESHIP_INBOX_DIR"), &cfg.InboxDir)

	if err := s.setIntFromString("max-attempts", os.Getenv("SAMPLESHIP_MAX_ATTEMPTS"), &cfg.MaxAttempts); err != nil {
		return err
	}
	if err := s.setDuration("base-backoff", os.Getenv("SAMPLESHIP_BASE_BACKOFF"), &cfg.BaseBackoff); err != nil {
		return err
	}
	if err := s.setDuration("max-backoff", os.Getenv("SAMPLESHIP_MAX_BACKOFF"), &cfg.MaxBackoff); err != nil {
		return err
	}
	if err := s.setDuration("send-timeout", os.Getenv("SAMPLESHIP_SEND_TIMEOUT"), &cfg.SendTimeout); err != nil {
		return err
	}
	if err := s.setDuration("poll-interval", os.Getenv("SAMPLESHIP_POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}

	s.setBoolFromString("once", os.Getenv("SAMPLESHIP_ONCE"), &cfg.Once)

	return nil
}

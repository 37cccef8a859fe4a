package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        int    `yaml:"port"`
	BindAddress string `yaml:"bind_address"`
	Password    string `yaml:"password"` // Empty disables the login gate

	CameraDevice string `yaml:"camera_device"` // Device index ("0") or stream URL
	FrameWidth   int    `yaml:"frame_width"`
	FrameHeight  int    `yaml:"frame_height"`

	CascadePath          string  `yaml:"cascade_path"`
	AdminsDirectory      string  `yaml:"admins_dir"`
	RecognitionThreshold float64 `yaml:"recognition_threshold"` // LBPH distance, lower is stricter

	RecordingsDirectory string  `yaml:"recordings_dir"`
	RecordingFPS        float64 `yaml:"recording_fps"`
	RecordingCodec      string  `yaml:"recording_codec"`

	DatabasePath string `yaml:"db_path"`
	LogDirectory string `yaml:"log_dir"`

	NotifyWorkers      int           `yaml:"notify_workers"`
	NotifyQueueSize    int           `yaml:"notify_queue_size"`
	NotifyTimeout      time.Duration `yaml:"notify_timeout"`
	StreamWriteTimeout time.Duration `yaml:"stream_write_timeout"`

	Email EmailConfig `yaml:"email"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
}

// EmailConfig holds the SMTP transport settings.
type EmailConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	To       string `yaml:"to"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
}

// Enabled reports whether enough settings are present to send mail.
func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.Address != "" && e.To != ""
}

// MQTTConfig holds the MQTT transport settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // Empty disables the transport
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

func Default() *Config {
	return &Config{
		Port:                 8080,
		CameraDevice:         "0",
		FrameWidth:           640,
		FrameHeight:          480,
		CascadePath:          filepath.Join(".", "data", "haarcascade_frontalface_default.xml"),
		AdminsDirectory:      filepath.Join(".", "admins"),
		RecognitionThreshold: 80,
		RecordingsDirectory:  filepath.Join(".", "recordings"),
		RecordingFPS:         20,
		RecordingCodec:       "XVID",
		DatabasePath:         filepath.Join(".", "data", "facewatch.db"),
		LogDirectory:         filepath.Join(".", "logs"),
		NotifyWorkers:        2,
		NotifyQueueSize:      64,
		NotifyTimeout:        10 * time.Second,
		StreamWriteTimeout:   5 * time.Second,
		Email: EmailConfig{
			Port: 465,
		},
		MQTT: MQTTConfig{
			Topic:    "facewatch/alerts",
			ClientID: "facewatch",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and finally the process environment. A YAML file that
// exists but cannot be read or decoded is an error.
func Load() (*Config, error) {
	cfg := Default()

	// .env only fills variables that are not already set
	_ = godotenv.Load()

	configFile := getEnv("CONFIG_FILE", "config.yaml")
	if err := cfg.loadFile(configFile); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// loadFile decodes path over c. A missing file leaves c unchanged.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvAsInt("PORT", c.Port)
	c.BindAddress = getEnv("BIND_ADDRESS", c.BindAddress)
	c.Password = getEnv("PASSWORD", c.Password)

	c.CameraDevice = getEnv("CAMERA_DEVICE", c.CameraDevice)
	c.FrameWidth = getEnvAsInt("FRAME_WIDTH", c.FrameWidth)
	c.FrameHeight = getEnvAsInt("FRAME_HEIGHT", c.FrameHeight)

	c.CascadePath = getEnv("CASCADE_PATH", c.CascadePath)
	c.AdminsDirectory = getEnv("ADMINS_DIR", c.AdminsDirectory)
	c.RecognitionThreshold = getEnvAsFloat("RECOGNITION_THRESHOLD", c.RecognitionThreshold)

	c.RecordingsDirectory = getEnv("RECORDINGS_DIR", c.RecordingsDirectory)
	c.RecordingFPS = getEnvAsFloat("RECORDING_FPS", c.RecordingFPS)
	c.RecordingCodec = getEnv("RECORDING_CODEC", c.RecordingCodec)

	c.DatabasePath = getEnv("DB_PATH", c.DatabasePath)
	c.LogDirectory = getEnv("LOG_DIR", c.LogDirectory)

	c.NotifyWorkers = getEnvAsInt("NOTIFY_WORKERS", c.NotifyWorkers)
	c.NotifyQueueSize = getEnvAsInt("NOTIFY_QUEUE_SIZE", c.NotifyQueueSize)
	c.NotifyTimeout = getEnvAsDuration("NOTIFY_TIMEOUT", c.NotifyTimeout)
	c.StreamWriteTimeout = getEnvAsDuration("STREAM_WRITE_TIMEOUT", c.StreamWriteTimeout)

	c.Email.Address = getEnv("EMAIL_ADDRESS", c.Email.Address)
	c.Email.Password = getEnv("EMAIL_PASSWORD", c.Email.Password)
	c.Email.To = getEnv("TO_ADDRESS", c.Email.To)
	c.Email.Host = getEnv("SMTP_HOST", c.Email.Host)
	c.Email.Port = getEnvAsInt("SMTP_PORT", c.Email.Port)

	c.MQTT.Broker = getEnv("MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.Topic = getEnv("MQTT_TOPIC", c.MQTT.Topic)
	c.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", c.MQTT.ClientID)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("10s") or plain seconds ("10").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

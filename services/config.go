package services

import (
	"log/slog"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Google    GoogleConfig
	AI        AIConfig
	JWT       JWTConfig
	Scheduler SchedulerConfig
	WebSocket WebSocketConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	URL          string
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

// GoogleConfig covers the calendar and mail collaborators. Both share one
// OAuth client credential; scopes are requested per service.
type GoogleConfig struct {
	CredentialsFile string
	TokenFile       string
	CalendarID      string
	MailFrom        string
}

type AIConfig struct {
	GeminiAPIKey string
}

type JWTConfig struct {
	Secret string
}

type SchedulerConfig struct {
	ReminderPollMinutes int
	SlotStepMinutes     int
}

type WebSocketConfig struct {
	AllowedOrigins string
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("google.credentials_file", "credentials.json")
	viper.SetDefault("google.token_file", "token.json")
	viper.SetDefault("google.calendar_id", "primary")
	viper.SetDefault("google.mail_from", "")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("scheduler.reminder_poll_minutes", "5")
	viper.SetDefault("scheduler.slot_step_minutes", "30")
	viper.SetDefault("websocket.allowed_origins", "")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("google.credentials_file", "GOOGLE_CREDENTIALS_FILE")
	viper.BindEnv("google.token_file", "GOOGLE_TOKEN_FILE")
	viper.BindEnv("google.calendar_id", "GOOGLE_CALENDAR_ID")
	viper.BindEnv("google.mail_from", "GOOGLE_MAIL_FROM")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("scheduler.reminder_poll_minutes", "SCHEDULER_REMINDER_POLL_MINUTES")
	viper.BindEnv("scheduler.slot_step_minutes", "SCHEDULER_SLOT_STEP_MINUTES")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		Google: GoogleConfig{
			CredentialsFile: viper.GetString("google.credentials_file"),
			TokenFile:       viper.GetString("google.token_file"),
			CalendarID:      viper.GetString("google.calendar_id"),
			MailFrom:        viper.GetString("google.mail_from"),
		},
		AI: AIConfig{
			GeminiAPIKey: viper.GetString("gemini.api_key"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		Scheduler: SchedulerConfig{
			ReminderPollMinutes: viper.GetInt("scheduler.reminder_poll_minutes"),
			SlotStepMinutes:     viper.GetInt("scheduler.slot_step_minutes"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
	}
}

package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		MaxUploadSize             string // echo BodyLimit format, eg. "10M"
	}

	DatabaseConfig struct {
		Backend         string // postgres | sqlite | firestore | memory
		Engine          string
		Host            string
		Port            string
		Name            string
		User            string
		Password        string
		AdminUser       string
		AdminPassword   string
		DisableTLS      bool
		Path            string // sqlite file
		ProjectID       string // firestore
		CredentialsFile string // firestore & gcs
	}

	BlobConfig struct {
		Backend       string // gcs | local
		Bucket        string
		Dir           string
		PublicBaseURL string
	}

	IdentityConfig struct {
		Provider string // firebase | local
		APIKey   string
		Endpoint string
	}

	VisionConfig struct {
		APIKey     string
		Endpoint   string
		Timeout    time.Duration
		MaxResults int
	}

	InsightConfig struct {
		APIKey  string
		Model   string
		Timeout time.Duration
	}

	CameraConfig struct {
		Command []string
	}

	ClientConfig struct {
		APIURL      string
		SessionFile string
	}

	Config struct {
		AppName         string
		Env             string
		Build           string
		Debug           bool
		TestMode        bool
		SecretKey       string
		FrontendBaseURL string
		RollbarToken    string
		SendgridAPIKey  string
		FromEmail       string
		WorkDir         string

		Server   ServerConfig
		Database DatabaseConfig
		Blob     BlobConfig
		Identity IdentityConfig
		Vision   VisionConfig
		Insight  InsightConfig
		Camera   CameraConfig
		Client   ClientConfig
	}
)

func (c DatabaseConfig) Address() string {
	if c.Port == "" {
		return c.Host
	}
	return c.Host + ":" + c.Port
}

// DefaultFromEmail parses the configured sender, falling back to noreply@localhost.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.FromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

// NewConfig loads the configuration from the environment (prefixed with the ENV name)
// and from config/.env.<env> when that file exists.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("appName", "AI Attendance")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "u7$k2-qp)w9z!d+attendance#x1(h@e4^v=r8m&c0yb")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "noreply@localhost")

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("maxUploadSize", "10M")

	v.SetDefault("dbBackend", "sqlite")
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "attendance")
	v.SetDefault("dbUser", "attendance")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbAdminUser", "")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("dbPath", "./data/attendance.db")
	v.SetDefault("firestoreProjectID", "")
	v.SetDefault("googleCredentialsFile", "")

	v.SetDefault("blobBackend", "local")
	v.SetDefault("blobBucket", "")
	v.SetDefault("blobDir", "./data/blobs")
	v.SetDefault("blobPublicBaseURL", "http://localhost:8000/blobs")

	v.SetDefault("identityProvider", "local")
	v.SetDefault("identityApiKey", "")
	v.SetDefault("identityEndpoint", "https://identitytoolkit.googleapis.com/v1")

	v.SetDefault("visionApiKey", "")
	v.SetDefault("visionEndpoint", "https://vision.googleapis.com/v1/images:annotate")
	v.SetDefault("visionTimeout", 10*time.Second)
	v.SetDefault("visionMaxResults", 10)

	v.SetDefault("geminiApiKey", "")
	v.SetDefault("geminiModel", "gemini-pro")
	v.SetDefault("geminiTimeout", 15*time.Second)

	v.SetDefault("cameraCommand", "ffmpeg -loglevel error -f v4l2 -i /dev/video0 -frames:v 1 -f image2pipe -vcodec mjpeg -")

	v.SetDefault("clientApiURL", "http://localhost:8000")
	v.SetDefault("clientSessionFile", filepath.Join(userConfigDir(), "attendctl", "session.json"))

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:         v.GetString("appName"),
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		RollbarToken:    v.GetString("rollbarToken"),
		SendgridAPIKey:  v.GetString("sendgridApiKey"),
		FromEmail:       v.GetString("defaultFromEmail"),
		WorkDir:         wd,
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Address:                   v.GetString("serverAddress"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
			MaxUploadSize:             v.GetString("maxUploadSize"),
		},
		Database: DatabaseConfig{
			Backend:         strings.ToLower(v.GetString("dbBackend")),
			Engine:          v.GetString("dbEngine"),
			Host:            v.GetString("dbHost"),
			Port:            v.GetString("dbPort"),
			Name:            v.GetString("dbName"),
			User:            v.GetString("dbUser"),
			Password:        v.GetString("dbPassword"),
			AdminUser:       v.GetString("dbAdminUser"),
			AdminPassword:   v.GetString("dbAdminPassword"),
			DisableTLS:      v.GetBool("dbDisableTLS"),
			Path:            v.GetString("dbPath"),
			ProjectID:       v.GetString("firestoreProjectID"),
			CredentialsFile: v.GetString("googleCredentialsFile"),
		},
		Blob: BlobConfig{
			Backend:       strings.ToLower(v.GetString("blobBackend")),
			Bucket:        v.GetString("blobBucket"),
			Dir:           v.GetString("blobDir"),
			PublicBaseURL: strings.TrimRight(v.GetString("blobPublicBaseURL"), "/"),
		},
		Identity: IdentityConfig{
			Provider: strings.ToLower(v.GetString("identityProvider")),
			APIKey:   v.GetString("identityApiKey"),
			Endpoint: strings.TrimRight(v.GetString("identityEndpoint"), "/"),
		},
		Vision: VisionConfig{
			APIKey:     v.GetString("visionApiKey"),
			Endpoint:   v.GetString("visionEndpoint"),
			Timeout:    v.GetDuration("visionTimeout"),
			MaxResults: v.GetInt("visionMaxResults"),
		},
		Insight: InsightConfig{
			APIKey:  v.GetString("geminiApiKey"),
			Model:   v.GetString("geminiModel"),
			Timeout: v.GetDuration("geminiTimeout"),
		},
		Camera: CameraConfig{
			Command: strings.Fields(v.GetString("cameraCommand")),
		},
		Client: ClientConfig{
			APIURL:      strings.TrimRight(v.GetString("clientApiURL"), "/"),
			SessionFile: v.GetString("clientSessionFile"),
		},
	}
}

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return "."
}

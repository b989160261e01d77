// Package config loads application settings from a .env file and environment variables.
// Environment variables always take precedence over .env file values.
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DBConfig holds PostgreSQL settings – either set DatabaseURL directly, or the individual fields.
type DBConfig struct {
	DatabaseURL string
	DBUser      string
	DBPass      string
	DBHost      string
	DBPort      string
	DBName      string
	DBSSLMode   string
}

// Config holds settings for the status server.
type Config struct {
	DBConfig

	// JWT signing secret (required).
	JWTSecret string

	Debug      bool
	Port       string
	CursorFile string
}

// SyncConfig holds settings used by the lottosync jobs.
type SyncConfig struct {
	DBConfig

	Debug bool

	// HTTP sources
	UserAgent      string
	RequestTimeout time.Duration
	PageInterval   time.Duration
	Retries        int
	RetryWait      time.Duration

	Draw      DrawPageConfig
	Directory DirectoryConfig
	Winners   WinnersConfig
	Community CommunityConfig

	DrawPoll      PollConfig
	CommunityPoll PollConfig

	GeoTolerance    float64
	SentinelStoreID int64

	CursorFile string

	// Run lock; empty RedisAddr disables locking.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	// Downstream signal; empty brokers disables publishing.
	KafkaBrokers []string
	KafkaTopic   string
}

// DrawPageConfig locates the official results page and its elements.
type DrawPageConfig struct {
	URL         string
	NumberParam string
	Referer     string

	DrawNoSelector  string
	DateSelector    string
	BallSelector    string
	TierRowSelector string
	SalesSelector   string
}

// DirectoryConfig describes the paged retailer-lookup endpoint.
type DirectoryConfig struct {
	URL     string
	Referer string
	Regions []string

	ItemsKey      string
	TotalPagesKey string

	IDKey        string
	NameKey      string
	PhoneKey     string
	Addr1Key     string
	Addr2Key     string
	Addr3Key     string
	Addr4Key     string
	RoadAddrKey  string
	LongitudeKey string
	LatitudeKey  string
}

// WinnersConfig describes the top-winning-retailers page.
type WinnersConfig struct {
	URL        string
	Referer    string
	DrawParam  string
	PageParam  string
	MaxPages   int
	GroupSel   string
	TableSel   string
	PageMarker string
}

// CommunityConfig describes the forum board carrying draw detail posts.
type CommunityConfig struct {
	LoginURL     string
	LoginIDField string
	LoginPWField string
	ID           string
	Password     string
	BoardURL     string
	ArticleSel   string
	TitleSel     string
	BodySel      string
}

// PollConfig bounds a polling loop.
type PollConfig struct {
	MaxAttempts int
	Interval    time.Duration
}

// Load reads configuration from a .env file (if present) and then from
// environment variables. Environment variables always win.
func Load() *Config {
	v := newViper()
	setDBDefaults(v)
	v.SetDefault("PORT", ":9000")
	v.SetDefault("DEBUG", false)
	v.SetDefault("CURSOR_FILE", "dbsync.json")

	cfg := &Config{
		DBConfig:   dbConfig(v),
		JWTSecret:  v.GetString("JWT_SECRET"),
		Debug:      v.GetBool("DEBUG"),
		Port:       v.GetString("PORT"),
		CursorFile: v.GetString("CURSOR_FILE"),
	}

	cfg.validate()
	return cfg
}

// LoadSync reads the job configuration from .env and environment variables.
func LoadSync() *SyncConfig {
	v := newViper()
	setDBDefaults(v)
	setSyncDefaults(v)

	cfg := &SyncConfig{
		DBConfig:       dbConfig(v),
		Debug:          v.GetBool("DEBUG"),
		UserAgent:      v.GetString("SYNC_USER_AGENT"),
		RequestTimeout: v.GetDuration("SYNC_REQUEST_TIMEOUT"),
		PageInterval:   v.GetDuration("SYNC_PAGE_INTERVAL"),
		Retries:        v.GetInt("SYNC_RETRIES"),
		RetryWait:      v.GetDuration("SYNC_RETRY_WAIT"),
		Draw: DrawPageConfig{
			URL:             v.GetString("DRAW_URL"),
			NumberParam:     v.GetString("DRAW_NUMBER_PARAM"),
			Referer:         v.GetString("DRAW_REFERER"),
			DrawNoSelector:  v.GetString("DRAW_SEL_NUMBER"),
			DateSelector:    v.GetString("DRAW_SEL_DATE"),
			BallSelector:    v.GetString("DRAW_SEL_BALLS"),
			TierRowSelector: v.GetString("DRAW_SEL_TIERS"),
			SalesSelector:   v.GetString("DRAW_SEL_SALES"),
		},
		Directory: DirectoryConfig{
			URL:           v.GetString("DIRECTORY_URL"),
			Referer:       v.GetString("DIRECTORY_REFERER"),
			Regions:       splitTrimmed(v.GetString("DIRECTORY_REGIONS")),
			ItemsKey:      v.GetString("DIRECTORY_KEY_ITEMS"),
			TotalPagesKey: v.GetString("DIRECTORY_KEY_TOTAL_PAGES"),
			IDKey:         v.GetString("DIRECTORY_KEY_ID"),
			NameKey:       v.GetString("DIRECTORY_KEY_NAME"),
			PhoneKey:      v.GetString("DIRECTORY_KEY_PHONE"),
			Addr1Key:      v.GetString("DIRECTORY_KEY_ADDR1"),
			Addr2Key:      v.GetString("DIRECTORY_KEY_ADDR2"),
			Addr3Key:      v.GetString("DIRECTORY_KEY_ADDR3"),
			Addr4Key:      v.GetString("DIRECTORY_KEY_ADDR4"),
			RoadAddrKey:   v.GetString("DIRECTORY_KEY_ROAD_ADDR"),
			LongitudeKey:  v.GetString("DIRECTORY_KEY_LONGITUDE"),
			LatitudeKey:   v.GetString("DIRECTORY_KEY_LATITUDE"),
		},
		Winners: WinnersConfig{
			URL:        v.GetString("WINNERS_URL"),
			Referer:    v.GetString("WINNERS_REFERER"),
			DrawParam:  v.GetString("WINNERS_DRAW_PARAM"),
			PageParam:  v.GetString("WINNERS_PAGE_PARAM"),
			MaxPages:   v.GetInt("WINNERS_MAX_PAGES"),
			GroupSel:   v.GetString("WINNERS_SEL_GROUP"),
			TableSel:   v.GetString("WINNERS_SEL_TABLE"),
			PageMarker: v.GetString("WINNERS_SEL_PAGE_MARKER"),
		},
		Community: CommunityConfig{
			LoginURL:     v.GetString("COMMUNITY_LOGIN_URL"),
			LoginIDField: v.GetString("COMMUNITY_LOGIN_ID_FIELD"),
			LoginPWField: v.GetString("COMMUNITY_LOGIN_PW_FIELD"),
			ID:           v.GetString("COMMUNITY_ID"),
			Password:     v.GetString("COMMUNITY_PW"),
			BoardURL:     v.GetString("COMMUNITY_BOARD_URL"),
			ArticleSel:   v.GetString("COMMUNITY_SEL_ARTICLE"),
			TitleSel:     v.GetString("COMMUNITY_SEL_TITLE"),
			BodySel:      v.GetString("COMMUNITY_SEL_BODY"),
		},
		DrawPoll: PollConfig{
			MaxAttempts: v.GetInt("POLL_DRAW_ATTEMPTS"),
			Interval:    v.GetDuration("POLL_DRAW_INTERVAL"),
		},
		CommunityPoll: PollConfig{
			MaxAttempts: v.GetInt("POLL_COMMUNITY_ATTEMPTS"),
			Interval:    v.GetDuration("POLL_COMMUNITY_INTERVAL"),
		},
		GeoTolerance:    v.GetFloat64("GEO_TOLERANCE"),
		SentinelStoreID: v.GetInt64("SENTINEL_STORE_ID"),
		CursorFile:      v.GetString("CURSOR_FILE"),
		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         v.GetInt("REDIS_DB"),
		LockTTL:         v.GetDuration("LOCK_TTL"),
		KafkaBrokers:    splitTrimmed(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:      v.GetString("KAFKA_TOPIC"),
	}

	cfg.validate()
	return cfg
}

// PostgresDSN returns the full PostgreSQL connection string.
// DATABASE_URL takes precedence over individual fields.
func (c *DBConfig) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser,
		c.DBPass,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

// JWTKey returns the JWT signing key as a byte slice.
func (c *Config) JWTKey() []byte {
	return []byte(c.JWTSecret)
}

func (c *Config) validate() {
	if c.DatabaseURL == "" && c.DBPass == "" {
		log.Fatal("config: DATABASE_URL or DB_PASS must be set")
	}
	if c.JWTSecret == "" {
		log.Fatal("config: JWT_SECRET must be set")
	}
}

func (c *SyncConfig) validate() {
	if c.DatabaseURL == "" && c.DBPass == "" {
		log.Fatal("config: DATABASE_URL or DB_PASS must be set")
	}
	if len(c.Directory.Regions) == 0 {
		log.Fatal("config: DIRECTORY_REGIONS must list at least one region")
	}
	if c.RedisAddr != "" && c.LockTTL < time.Second {
		log.Fatal("config: LOCK_TTL must be at least 1s")
	}
	if c.DrawPoll.MaxAttempts < 1 || c.CommunityPoll.MaxAttempts < 1 {
		log.Fatal("config: poll attempts must be at least 1")
	}
}

func setDBDefaults(v *viper.Viper) {
	v.SetDefault("DB_USER", "lotto")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "lotto")
	v.SetDefault("DB_SSLMODE", "disable")
}

func dbConfig(v *viper.Viper) DBConfig {
	return DBConfig{
		DatabaseURL: v.GetString("DATABASE_URL"),
		DBUser:      v.GetString("DB_USER"),
		DBPass:      v.GetString("DB_PASS"),
		DBHost:      v.GetString("DB_HOST"),
		DBPort:      v.GetString("DB_PORT"),
		DBName:      v.GetString("DB_NAME"),
		DBSSLMode:   v.GetString("DB_SSLMODE"),
	}
}

func setSyncDefaults(v *viper.Viper) {
	v.SetDefault("DEBUG", false)
	v.SetDefault("SYNC_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("SYNC_REQUEST_TIMEOUT", "30s")
	v.SetDefault("SYNC_PAGE_INTERVAL", "6s")
	v.SetDefault("SYNC_RETRIES", 3)
	v.SetDefault("SYNC_RETRY_WAIT", "10s")

	v.SetDefault("DRAW_URL", "https://dhlottery.co.kr/gameResult.do?method=byWin")
	v.SetDefault("DRAW_NUMBER_PARAM", "drwNo")
	v.SetDefault("DRAW_REFERER", "https://dhlottery.co.kr/gameResult.do?method=byWin")
	v.SetDefault("DRAW_SEL_NUMBER", ".win_result h4 strong")
	v.SetDefault("DRAW_SEL_DATE", ".win_result p")
	v.SetDefault("DRAW_SEL_BALLS", ".win_result .nums .num p span")
	v.SetDefault("DRAW_SEL_TIERS", ".tbl_data tbody tr")
	v.SetDefault("DRAW_SEL_SALES", ".list_text_common li strong")

	v.SetDefault("DIRECTORY_URL", "https://www.dhlottery.co.kr/store.do?method=sellerInfo645Result")
	v.SetDefault("DIRECTORY_REFERER", "https://dhlottery.co.kr/store.do?method=sellerInfo645")
	v.SetDefault("DIRECTORY_REGIONS", "서울,경기,부산,대구,인천,대전,울산,강원,충북,충남,광주,전북,전남,경북,경남,제주,세종")
	v.SetDefault("DIRECTORY_KEY_ITEMS", "arr")
	v.SetDefault("DIRECTORY_KEY_TOTAL_PAGES", "totalPage")
	v.SetDefault("DIRECTORY_KEY_ID", "RTLRID")
	v.SetDefault("DIRECTORY_KEY_NAME", "FIRMNM")
	v.SetDefault("DIRECTORY_KEY_PHONE", "RTLRSTRTELNO")
	v.SetDefault("DIRECTORY_KEY_ADDR1", "BPLCLOCPLC1")
	v.SetDefault("DIRECTORY_KEY_ADDR2", "BPLCLOCPLC2")
	v.SetDefault("DIRECTORY_KEY_ADDR3", "BPLCLOCPLC3")
	v.SetDefault("DIRECTORY_KEY_ADDR4", "BPLCLOCPLCDTLADRES")
	v.SetDefault("DIRECTORY_KEY_ROAD_ADDR", "BPLCDORODTLADRES")
	v.SetDefault("DIRECTORY_KEY_LONGITUDE", "LONGITUDE")
	v.SetDefault("DIRECTORY_KEY_LATITUDE", "LATITUDE")

	v.SetDefault("WINNERS_URL", "https://dhlottery.co.kr/store.do?method=topStore&pageGubun=L645")
	v.SetDefault("WINNERS_REFERER", "https://dhlottery.co.kr/store.do?method=topStore")
	v.SetDefault("WINNERS_DRAW_PARAM", "drwNo")
	v.SetDefault("WINNERS_PAGE_PARAM", "nowPage")
	v.SetDefault("WINNERS_MAX_PAGES", 50)
	v.SetDefault("WINNERS_SEL_GROUP", ".group_content")
	v.SetDefault("WINNERS_SEL_TABLE", ".tbl_data")
	v.SetDefault("WINNERS_SEL_PAGE_MARKER", ".paginate_common a[title]")

	v.SetDefault("COMMUNITY_LOGIN_URL", "https://nid.naver.com/nidlogin.login")
	v.SetDefault("COMMUNITY_LOGIN_ID_FIELD", "id")
	v.SetDefault("COMMUNITY_LOGIN_PW_FIELD", "pw")
	v.SetDefault("COMMUNITY_BOARD_URL", "https://cafe.naver.com/f-e/cafes/29572332/menus/22")
	v.SetDefault("COMMUNITY_SEL_ARTICLE", "tbody tr:not(.board-notice) td div.inner_list a.article")
	v.SetDefault("COMMUNITY_SEL_TITLE", ".title_area .title_text")
	v.SetDefault("COMMUNITY_SEL_BODY", ".se-main-container, .content-container, .article_viewer")

	v.SetDefault("POLL_DRAW_ATTEMPTS", 200)
	v.SetDefault("POLL_DRAW_INTERVAL", "1m")
	v.SetDefault("POLL_COMMUNITY_ATTEMPTS", 100)
	v.SetDefault("POLL_COMMUNITY_INTERVAL", "10m")

	v.SetDefault("GEO_TOLERANCE", 1e-6)
	v.SetDefault("SENTINEL_STORE_ID", 51100000)
	v.SetDefault("CURSOR_FILE", "dbsync.json")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_TTL", "10m")
	v.SetDefault("KAFKA_TOPIC", "lotto.sync.completed")
}

func newViper() *viper.Viper {
	// Silently load .env – OK if the file doesn't exist (production uses real env vars).
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using environment variables only")
	}

	v := viper.New()
	v.AutomaticEnv()
	return v
}

func splitTrimmed(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

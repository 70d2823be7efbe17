package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var portCmd = flag.Int("port", 3000, "HTTP server port")

type Config struct {
	ServerPort         int
	AcdbFiles          []string
	DeltaDirectory     string
	PersistEnabled     bool
	ZmqPubAddress      string
	ZmqSubAddress      string
	ZmqApiAddress      string
	LogLevel           string
	LogFormat          string
	ClampDatabaseSlots bool
	VmID               uint32
}

func LoadConfig() Config {
	godotenv.Load(".env")
	return Config{
		ServerPort:         *portCmd,
		AcdbFiles:          splitList(os.Getenv("ACDB_FILES")),
		DeltaDirectory:     os.Getenv("DELTA_DIRECTORY"),
		PersistEnabled:     parseBool(os.Getenv("PERSIST_ENABLED")),
		ZmqPubAddress:      os.Getenv("ZMQ_PUB_ADDRESS"),
		ZmqSubAddress:      os.Getenv("ZMQ_SUB_ADDRESS"),
		ZmqApiAddress:      os.Getenv("ZMQ_API_ADDRESS"),
		LogLevel:           valueOr(os.Getenv("LOG_LEVEL"), "info"),
		LogFormat:          valueOr(os.Getenv("LOG_FORMAT"), "json"),
		ClampDatabaseSlots: parseBool(os.Getenv("CLAMP_DATABASE_SLOTS")),
		VmID:               parseUint32(os.Getenv("VM_ID")),
	}
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseBool(value string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(value))
	return b
}

func parseUint32(value string) uint32 {
	n, _ := strconv.ParseUint(strings.TrimSpace(value), 0, 32)
	return uint32(n)
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

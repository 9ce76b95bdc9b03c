package util

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/taskvault/taskvault/lib/cache"
	"github.com/taskvault/taskvault/lib/logging"
	"github.com/taskvault/taskvault/lib/storage"
	"github.com/taskvault/taskvault/lib/storage/lstorage"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("taskvault")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// SetupStoreFlags adds the common storage configuration flags to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "storage-path"
	cmd.PersistentFlags().String(key, "taskvault.json", WrapString("Path of the durable snapshot (file path for the file backend, database path for the sqlite backend)"))

	key = "backend"
	cmd.PersistentFlags().String(key, lstorage.BackendFile, WrapString("Snapshot backend to use (file, sqlite)"))

	key = "codec"
	cmd.PersistentFlags().String(key, lstorage.CodecJSON, WrapString("Snapshot codec for the file backend (json, gob)"))

	key = "flush-delay"
	cmd.PersistentFlags().Duration(key, 500*time.Millisecond, WrapString("How long the write-back buffer waits after the first mutation before persisting a snapshot"))

	key = "cache-l1-capacity"
	cmd.PersistentFlags().Int(key, 16, WrapString("Entry capacity of the L1 query cache tier"))

	key = "cache-l1-ttl"
	cmd.PersistentFlags().Duration(key, 30*time.Second, WrapString("TTL of the L1 query cache tier"))

	key = "cache-l2-capacity"
	cmd.PersistentFlags().Int(key, 64, WrapString("Entry capacity of the L2 query cache tier"))

	key = "cache-l2-ttl"
	cmd.PersistentFlags().Duration(key, 5*time.Minute, WrapString("TTL of the L2 query cache tier"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// GetStoreOptions reads the storage configuration from viper
func GetStoreOptions() *lstorage.Options {
	logging.SetGlobalLevel(logging.ParseLevel(viper.GetString("log-level")))

	opts := lstorage.DefaultOptions()
	opts.Path = viper.GetString("storage-path")
	opts.Backend = viper.GetString("backend")
	opts.Codec = viper.GetString("codec")
	opts.FlushDelay = viper.GetDuration("flush-delay")
	opts.Cache = cache.Config{
		L1Capacity: viper.GetInt("cache-l1-capacity"),
		L1TTL:      viper.GetDuration("cache-l1-ttl"),
		L2Capacity: viper.GetInt("cache-l2-capacity"),
		L2TTL:      viper.GetDuration("cache-l2-ttl"),
	}
	return opts
}

// OpenStore opens the configured local store
func OpenStore() (storage.IStorage, error) {
	return lstorage.New(GetStoreOptions())
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

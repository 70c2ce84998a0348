package main

import (
	"io/fs"
	"strings"

	clay "github.com/go-go-golems/clay/pkg"
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/go-go-golems/glazed/pkg/help"
	help_cmd "github.com/go-go-golems/glazed/pkg/help/cmd"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "chatwidget",
	Short: "chatwidget runs an embeddable AI chat widget in the terminal",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitLoggerFromViper()
	},
	SilenceUsage: true,
}

func main() {
	// a local .env may carry CHATWIDGET_* values
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		cobra.CheckErr(errors.Wrap(err, "load .env"))
	}

	pf := rootCmd.PersistentFlags()
	pf.String("storage-kind", "file", "Session storage: file, sqlite, redis, memory")
	pf.String("storage-path", "", "Storage file for file and sqlite storage")
	pf.String("storage-redis-addr", "localhost:6379", "Redis address for redis storage")
	pf.String("storage-redis-prefix", "chatwidget:", "Key prefix for redis storage")

	pf.Bool("lifecycle-redis", false, "Publish lifecycle events to Redis Streams")
	pf.String("lifecycle-redis-addr", "localhost:6379", "Redis address for lifecycle events")
	pf.String("lifecycle-topic", "chatwidget.lifecycle", "Lifecycle event topic")

	helpSystem := help.NewHelpSystem()
	help_cmd.SetupCobraRootCommand(helpSystem, rootCmd)

	// adds --config and the log-level, log-file and log-format flags
	if err := clay.InitViper("chatwidget", rootCmd); err != nil {
		cobra.CheckErr(err)
	}
	// nested keys such as storage.kind read from CHATWIDGET_STORAGE_KIND
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	bindFlags(pf, map[string]string{
		"storage.kind":            "storage-kind",
		"storage.path":            "storage-path",
		"storage.redis-addr":      "storage-redis-addr",
		"storage.redis-prefix":    "storage-redis-prefix",
		"lifecycle.redis-enabled": "lifecycle-redis",
		"lifecycle.redis-addr":    "lifecycle-redis-addr",
		"lifecycle.topic":         "lifecycle-topic",
	})

	sessionCmd, err := NewSessionCommand()
	cobra.CheckErr(err)
	cobraSessionCmd, err := cli.BuildCobraCommand(sessionCmd)
	cobra.CheckErr(err)

	rootCmd.AddCommand(
		newRunCommand(),
		newDevBackendCommand(),
		cobraSessionCmd,
	)
	addEventsCommands(rootCmd)

	cobra.CheckErr(rootCmd.Execute())
}

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/chatwidget/pkg/devbackend"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newDevBackendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev-backend",
		Short: "Serve a local widget backend with canned replies",
		RunE: func(cmd *cobra.Command, args []string) error {
			fixtures := devbackend.DefaultFixtures()
			if path := viper.GetString("dev-backend.fixtures"); path != "" {
				f, err := devbackend.LoadFixtures(path)
				if err != nil {
					return err
				}
				fixtures = f
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := devbackend.New(fixtures,
				devbackend.WithRotateEvery(viper.GetInt("dev-backend.rotate-every")),
				devbackend.WithFailingChat(viper.GetBool("dev-backend.fail-chat")),
			)
			return srv.ListenAndServe(ctx, viper.GetString("dev-backend.addr"))
		},
	}
	f := cmd.Flags()
	f.String("addr", "127.0.0.1:8787", "Listen address")
	f.String("fixtures", "", "YAML file with tenant fixtures")
	f.Int("rotate-every", 0, "Hand out a new session id every N chat messages")
	f.Bool("fail-chat", false, "Answer every chat request with a 500")
	bindFlags(f, map[string]string{
		"dev-backend.addr":         "addr",
		"dev-backend.fixtures":     "fixtures",
		"dev-backend.rotate-every": "rotate-every",
		"dev-backend.fail-chat":    "fail-chat",
	})
	return cmd
}

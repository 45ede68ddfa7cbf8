package commands

import (
	"github.com/spf13/cobra"
	"github.com/vacon/signaling/pkg/logger"
)

var (
	debug bool
	log   *logger.Logger
)

func Execute() error {
	root := &cobra.Command{
		Use:          "vacon",
		Short:        "Tools around the vacon signaling relay",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = logger.NewConsole(debug, "vacon", false)
		},
	}
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "print debug messages")

	root.AddCommand(peerCmd(), stopwatchCmd())
	return root.Execute()
}

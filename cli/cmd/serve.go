package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/philiporange/orac-sub000/api"
	"github.com/philiporange/orac-sub000/store"
)

var (
	servePort string
	serveDB   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve flows over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "HTTP listen port")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "Record runs in a SQLite database at this path")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	var runs *store.Store
	if serveDB != "" {
		runs, err = store.Open(serveDB)
		if err != nil {
			return err
		}
		defer runs.Close()
	}

	logger := newLogger()
	server := api.NewServer(a, runs, logger)

	fmt.Fprintf(os.Stderr, "serving %d flows on :%s\n", len(a.Flows), servePort)
	return server.Router().Run(":" + servePort)
}

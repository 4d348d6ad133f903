package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type queryView struct {
	QueryID      string                   `json:"queryId"`
	SQL          string                   `json:"sql"`
	Status       string                   `json:"status"`
	Columns      []string                 `json:"columns"`
	Data         []map[string]interface{} `json:"data"`
	RowCount     int                      `json:"rowCount"`
	ErrorMessage *string                  `json:"errorMessage"`
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run and inspect SQL queries",
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

var querySubmitCmd = &cobra.Command{
	Use:   "submit <sql>",
	Short: "Submit a SQL query",
	Long:  "kadali query submit \"SELECT ...\" [--limit N] [--wait]\n\nSubmits the query for asynchronous execution. Use --wait to poll until it finishes.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		wait, _ := cmd.Flags().GetBool("wait")

		client := newAPIClient(cmd)

		var q queryView
		if err := client.do(http.MethodPost, "/data/query", map[string]interface{}{
			"sql":   args[0],
			"limit": limit,
		}, &q); err != nil {
			return err
		}

		fmt.Printf("Query %s submitted (status %s)\n", q.QueryID, q.Status)
		if !wait {
			return nil
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		lastStatus := q.Status
		for {
			select {
			case <-stop:
				fmt.Println()
				return nil
			case <-ticker.C:
				var current queryView
				if err := client.do(http.MethodGet, "/data/query/"+q.QueryID, nil, &current); err != nil {
					return err
				}
				if current.Status != lastStatus {
					fmt.Printf("  [%s]  %s\n", time.Now().Format("15:04:05"), current.Status)
					lastStatus = current.Status
				}
				switch current.Status {
				case "COMPLETED":
					printJSON(current)
					return nil
				case "FAILED":
					if current.ErrorMessage != nil {
						return fmt.Errorf("query failed: %s", *current.ErrorMessage)
					}
					return fmt.Errorf("query failed")
				case "CANCELLED":
					fmt.Println("Query cancelled")
					return nil
				}
			}
		}
	},
}

var queryGetCmd = &cobra.Command{
	Use:   "get <query-id>",
	Short: "Get query status and results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient(cmd)

		var q queryView
		if err := client.do(http.MethodGet, "/data/query/"+args[0], nil, &q); err != nil {
			return err
		}
		printJSON(q)
		return nil
	},
}

var queryCancelCmd = &cobra.Command{
	Use:   "cancel <query-id>",
	Short: "Cancel a running query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient(cmd)

		if err := client.do(http.MethodDelete, "/data/query/"+args[0], nil, nil); err != nil {
			return err
		}
		fmt.Printf("Query %s cancelled\n", args[0])
		return nil
	},
}

func init() {
	querySubmitCmd.Flags().Int("limit", 0, "Maximum rows to retain (0 uses the server default)")
	querySubmitCmd.Flags().Bool("wait", false, "Poll until the query reaches a terminal state")

	queryCmd.AddCommand(querySubmitCmd)
	queryCmd.AddCommand(queryGetCmd)
	queryCmd.AddCommand(queryCancelCmd)
}

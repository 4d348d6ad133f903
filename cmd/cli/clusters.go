package main

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type clusterView struct {
	ClusterID      string  `json:"clusterId"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Status         string  `json:"status"`
	DriverMemory   string  `json:"driverMemory"`
	DriverCores    int     `json:"driverCores"`
	ExecutorMemory string  `json:"executorMemory"`
	ExecutorCores  int     `json:"executorCores"`
	ExecutorCount  int     `json:"executorCount"`
	UIURL          *string `json:"uiUrl"`
	ErrorMessage   *string `json:"errorMessage"`
	CreatedAt      string  `json:"createdAt"`
}

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "Manage compute clusters",
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

var clustersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clusters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client := newAPIClient(cmd)

		var clusters []clusterView
		if err := client.do(http.MethodGet, "/clusters", nil, &clusters); err != nil {
			return err
		}

		outputFmt, _ := cmd.Flags().GetString("output")
		if outputFmt == "json" {
			printJSON(clusters)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CLUSTER ID\tNAME\tTYPE\tSTATUS\tEXECUTORS\tCREATED")
		for _, c := range clusters {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				c.ClusterID, c.Name, c.Type, c.Status, c.ExecutorCount, c.CreatedAt)
		}
		return w.Flush()
	},
}

var clustersGetCmd = &cobra.Command{
	Use:   "get <cluster-id>",
	Short: "Get cluster details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient(cmd)

		var c clusterView
		if err := client.do(http.MethodGet, "/clusters/"+args[0], nil, &c); err != nil {
			return err
		}
		printJSON(c)
		return nil
	},
}

var clustersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a cluster",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client := newAPIClient(cmd)

		name, _ := cmd.Flags().GetString("name")
		clusterType, _ := cmd.Flags().GetString("type")
		driverMemory, _ := cmd.Flags().GetString("driver-memory")
		driverCores, _ := cmd.Flags().GetInt("driver-cores")
		executorMemory, _ := cmd.Flags().GetString("executor-memory")
		executorCores, _ := cmd.Flags().GetInt("executor-cores")
		executorCount, _ := cmd.Flags().GetInt("executor-count")
		autoTerminate, _ := cmd.Flags().GetInt("auto-terminate-minutes")

		body := map[string]interface{}{
			"name":                 name,
			"type":                 clusterType,
			"driverMemory":         driverMemory,
			"driverCores":          driverCores,
			"executorMemory":       executorMemory,
			"executorCores":        executorCores,
			"executorCount":        executorCount,
			"autoTerminateMinutes": autoTerminate,
		}

		var c clusterView
		if err := client.do(http.MethodPost, "/clusters", body, &c); err != nil {
			return err
		}
		fmt.Printf("Cluster %s created (status %s)\n", c.ClusterID, c.Status)
		return nil
	},
}

var clustersTerminateCmd = &cobra.Command{
	Use:   "terminate <cluster-id>",
	Short: "Terminate a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient(cmd)

		if err := client.do(http.MethodDelete, "/clusters/"+args[0], nil, nil); err != nil {
			return err
		}
		fmt.Printf("Cluster %s terminated\n", args[0])
		return nil
	},
}

var clustersResetCmd = &cobra.Command{
	Use:   "reset <cluster-id>",
	Short: "Acknowledge and clear a failed cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient(cmd)

		if err := client.do(http.MethodPost, "/clusters/"+args[0]+"/reset", nil, nil); err != nil {
			return err
		}
		fmt.Printf("Cluster %s reset\n", args[0])
		return nil
	},
}

func init() {
	clustersListCmd.Flags().String("output", "", "Output format: json")

	clustersCreateCmd.Flags().String("name", "", "Cluster name")
	clustersCreateCmd.Flags().String("type", "INTERACTIVE", "Cluster type: INTERACTIVE, JOB, or ML")
	clustersCreateCmd.Flags().String("driver-memory", "2g", "Driver memory, e.g. 2g or 512m")
	clustersCreateCmd.Flags().Int("driver-cores", 1, "Driver core count")
	clustersCreateCmd.Flags().String("executor-memory", "4g", "Executor memory, e.g. 4g")
	clustersCreateCmd.Flags().Int("executor-cores", 2, "Executor core count")
	clustersCreateCmd.Flags().Int("executor-count", 2, "Executor count")
	clustersCreateCmd.Flags().Int("auto-terminate-minutes", 0, "Idle minutes before auto-terminate (0 uses the server default)")
	_ = clustersCreateCmd.MarkFlagRequired("name")

	clustersCmd.AddCommand(clustersListCmd)
	clustersCmd.AddCommand(clustersGetCmd)
	clustersCmd.AddCommand(clustersCreateCmd)
	clustersCmd.AddCommand(clustersTerminateCmd)
	clustersCmd.AddCommand(clustersResetCmd)
}

package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check protection engine status",
	Long: `Check the current status of the protection engine: evaluation counters,
threat and decision breakdowns, and pipeline throughput.`,
	RunE: runStatus,
}

var jsonOutput bool

// EngineStatus mirrors the /api/v1/status response.
type EngineStatus struct {
	Status    string          `json:"status"`
	Uptime    string          `json:"uptime"`
	Timestamp time.Time       `json:"timestamp"`
	Engine    *EngineCounters `json:"engine,omitempty"`
	Pipeline  *PipelineStats  `json:"pipeline,omitempty"`
}

type EngineCounters struct {
	Evaluations   uint64            `json:"evaluations"`
	Threats       map[string]uint64 `json:"threats"`
	Decisions     map[string]uint64 `json:"decisions"`
	GasAverageWei string            `json:"gasAverageWei"`
	LastUpdated   time.Time         `json:"lastUpdated"`
}

type PipelineStats struct {
	Workers   int    `json:"workers"`
	QueueSize int    `json:"queueSize"`
	Processed uint64 `json:"processed"`
	Threats   uint64 `json:"threats"`
	Errors    uint64 `json:"errors"`
	Dropped   uint64 `json:"dropped"`
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "output in JSON format")
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := getEngineStatus()
	if err != nil {
		return fmt.Errorf("failed to get engine status: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(status)
	}
	return outputFormatted(status)
}

func getEngineStatus() (*EngineStatus, error) {
	url := fmt.Sprintf("http://%s/api/v1/status", apiAddr())

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	if key := viper.GetString("api_key"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		// Engine might not be running
		return &EngineStatus{Status: "offline", Timestamp: time.Now()}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("authentication failed; set --api-key")
	}
	if resp.StatusCode != http.StatusOK {
		return &EngineStatus{Status: "error", Timestamp: time.Now()}, nil
	}

	var status EngineStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	status.Status = "running"
	return &status, nil
}

func apiAddr() string {
	host := viper.GetString("server.host")
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	port := viper.GetInt("server.port")
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

func outputFormatted(status *EngineStatus) error {
	fmt.Printf("MEV Shield Status\n")
	fmt.Printf("=================\n\n")

	fmt.Printf("Status:      %s\n", status.Status)
	if status.Uptime != "" {
		fmt.Printf("Uptime:      %s\n", status.Uptime)
	}
	fmt.Printf("Timestamp:   %s\n", status.Timestamp.Format(time.RFC3339))

	if status.Engine != nil {
		fmt.Printf("\nEngine\n")
		fmt.Printf("------\n")
		fmt.Printf("Evaluations:     %d\n", status.Engine.Evaluations)
		fmt.Printf("Gas Average:     %s wei\n", status.Engine.GasAverageWei)
		for threat, count := range status.Engine.Threats {
			fmt.Printf("Threat %-10s %d\n", threat+":", count)
		}
		for state, count := range status.Engine.Decisions {
			fmt.Printf("Decision %-8s %d\n", state+":", count)
		}
	}

	if status.Pipeline != nil {
		fmt.Printf("\nPipeline\n")
		fmt.Printf("--------\n")
		fmt.Printf("Workers:     %d\n", status.Pipeline.Workers)
		fmt.Printf("Queue Size:  %d\n", status.Pipeline.QueueSize)
		fmt.Printf("Processed:   %d\n", status.Pipeline.Processed)
		fmt.Printf("Threats:     %d\n", status.Pipeline.Threats)
		fmt.Printf("Errors:      %d\n", status.Pipeline.Errors)
		fmt.Printf("Dropped:     %d\n", status.Pipeline.Dropped)
	}

	return nil
}

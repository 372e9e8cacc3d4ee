package cli

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var emergencyStopCmd = &cobra.Command{
	Use:   "emergency-stop <owner-address>",
	Short: "Deactivate protection for an owner",
	Long: `Immediately deactivate swap protection for an owner address. Swaps for
that owner will be rejected until protection is reconfigured. Requires an
operator API key.`,
	Args: cobra.ExactArgs(1),
	RunE: runEmergencyStop,
}

var confirmStop bool

func init() {
	rootCmd.AddCommand(emergencyStopCmd)

	emergencyStopCmd.Flags().BoolVar(&confirmStop, "confirm", false, "skip the interactive confirmation")
}

func runEmergencyStop(cmd *cobra.Command, args []string) error {
	owner := args[0]

	fmt.Println("EMERGENCY STOP REQUESTED")
	fmt.Printf("Owner: %s\n", owner)
	fmt.Println("All swaps for this owner will be rejected until reconfigured.")
	fmt.Println()

	if !confirmStop {
		fmt.Print("Type 'EMERGENCY STOP' to confirm: ")
		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		if strings.TrimSpace(input) != "EMERGENCY STOP" {
			fmt.Println("Emergency stop cancelled")
			return nil
		}
	}

	url := fmt.Sprintf("http://%s/api/v1/admin/emergency-stop/%s", apiAddr(), owner)
	req, err := http.NewRequest("POST", url, nil)
	if err != nil {
		return err
	}
	if key := viper.GetString("api_key"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send emergency stop: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		fmt.Println("Emergency stop executed")
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("owner %s has no protection configuration", owner)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("operator API key required; set --api-key")
	default:
		return fmt.Errorf("emergency stop failed with status: %s", resp.Status)
	}
}

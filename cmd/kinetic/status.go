package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Inspect a running daemon: intents and active instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "daemon base URL")

	return cmd
}

type statusIntent struct {
	ID        string `json:"id"`
	Group     string `json:"group"`
	Priority  int    `json:"priority"`
	Enabled   bool   `json:"enabled"`
	CreatedAt string `json:"created_at"`
}

type statusActive struct {
	InstanceID string  `json:"instance_id"`
	IntentID   string  `json:"intent_id"`
	Hand       string  `json:"hand"`
	Group      string  `json:"group"`
	Priority   int     `json:"priority"`
	StartedAt  int64   `json:"started_at"`
	LastMatch  int64   `json:"last_match_at"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

func runStatus(addr string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	if err := getJSON(client, addr+"/api/health", &health); err != nil {
		return fmt.Errorf("daemon not responding at %s: %w", addr, err)
	}
	fmt.Printf("Daemon: %s (up %s)\n\n", health.Status, health.Uptime)

	var intentsResp struct {
		Intents []statusIntent `json:"intents"`
	}
	if err := getJSON(client, addr+"/api/intents", &intentsResp); err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Printf("Intents (%d)\n", len(intentsResp.Intents))
	intentTable := tablewriter.NewWriter(os.Stdout)
	intentTable.SetHeader([]string{"ID", "Group", "Priority", "Enabled", "Created"})
	for _, in := range intentsResp.Intents {
		enabled := green("yes")
		if !in.Enabled {
			enabled = red("no")
		}
		created := in.CreatedAt
		if t, err := time.Parse("2006-01-02T15:04:05Z07:00", in.CreatedAt); err == nil {
			created = humanize.Time(t)
		}
		intentTable.Append([]string{in.ID, in.Group, fmt.Sprintf("%d", in.Priority), enabled, created})
	}
	intentTable.Render()

	var activeResp struct {
		Active []statusActive `json:"active"`
	}
	if err := getJSON(client, addr+"/api/active", &activeResp); err != nil {
		return err
	}

	fmt.Printf("\nActive instances (%d)\n", len(activeResp.Active))
	activeTable := tablewriter.NewWriter(os.Stdout)
	activeTable.SetHeader([]string{"Intent", "Instance", "Hand", "Group", "Held", "Position"})
	for _, a := range activeResp.Active {
		held := a.LastMatch - a.StartedAt
		heldCell := fmt.Sprintf("%s ms", humanize.Comma(held))
		if held > 10000 {
			heldCell = yellow(heldCell)
		}
		activeTable.Append([]string{
			a.IntentID,
			shortID(a.InstanceID),
			a.Hand,
			a.Group,
			heldCell,
			fmt.Sprintf("(%.2f, %.2f)", a.X, a.Y),
		})
	}
	activeTable.Render()

	return nil
}

func getJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// shortID trims a UUID to its first group for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

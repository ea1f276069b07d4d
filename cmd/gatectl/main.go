// gatectl is the operator CLI for the admission gateway: send messages
// through the pipeline, inspect and cancel tasks, and manage the CII
// score table.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ghifiardi/gatra-world-monitor/pkg/a2a"
)

var (
	flagGateway string
	flagAPIKey  string
	flagAgentID string
	flagSkill   string
	flagNonce   string
	flagHistory int
)

var rootCmd = &cobra.Command{
	Use:           "gatectl",
	Short:         "Operator CLI for the A2A admission gateway",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var sendCmd = &cobra.Command{
	Use:   "send <text>",
	Short: "Send a message through the admission pipeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend,
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect or cancel tasks",
}

var taskGetCmd = &cobra.Command{
	Use:   "get <task-id>",
	Short: "Fetch one task by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskGet,
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a non-terminal task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskCancel,
}

var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "List the CII score table",
	Args:  cobra.NoArgs,
	RunE:  runScores,
}

var scoresSetCmd = &cobra.Command{
	Use:   "set <country> <score>",
	Short: "Update one CII score at runtime",
	Args:  cobra.ExactArgs(2),
	RunE:  runScoresSet,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check gateway liveness",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	gateway := os.Getenv("GATEWAY_URL")
	if gateway == "" {
		gateway = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&flagGateway, "gateway", gateway, "Gateway base URL")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", os.Getenv("GATEWAY_API_KEY"), "API key sent as x-api-key")
	rootCmd.PersistentFlags().StringVar(&flagAgentID, "agent", "", "Agent identity sent as x-a2a-agent-id")
	sendCmd.Flags().StringVar(&flagSkill, "skill", "", "Explicit skill id (metadata.skillId)")
	sendCmd.Flags().StringVar(&flagNonce, "nonce", "", "Replay-suppression nonce")
	taskGetCmd.Flags().IntVar(&flagHistory, "history", -1, "History length (0 suppresses history)")

	taskCmd.AddCommand(taskGetCmd, taskCancelCmd)
	scoresCmd.AddCommand(scoresSetCmd)
	rootCmd.AddCommand(sendCmd, taskCmd, scoresCmd, healthCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	msg := a2a.Message{
		Role:  "user",
		Parts: []a2a.Part{{Kind: "text", Text: args[0]}},
	}
	if flagSkill != "" {
		msg.Metadata = map[string]interface{}{"skillId": flagSkill}
	}
	task, err := newClient().Send(cmd.Context(), a2a.SendParams{Message: msg}, flagNonce)
	if err != nil {
		return err
	}
	return printTask(cmd, task)
}

func runTaskGet(cmd *cobra.Command, args []string) error {
	params := a2a.QueryParams{ID: args[0]}
	if flagHistory >= 0 {
		params.HistoryLength = &flagHistory
	}
	task, err := newClient().Get(cmd.Context(), params)
	if err != nil {
		return err
	}
	return printTask(cmd, task)
}

func runTaskCancel(cmd *cobra.Command, args []string) error {
	task, err := newClient().Cancel(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printTask(cmd, task)
}

func runScores(cmd *cobra.Command, args []string) error {
	scores, err := newClient().Scores(cmd.Context())
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(scores, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runScoresSet(cmd *cobra.Command, args []string) error {
	score, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("score must be numeric: %w", err)
	}
	if err := newClient().SetScore(cmd.Context(), args[0], score); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated %s to %.1f\n", args[0], score)
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	status, err := newClient().Health(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), status)
	return nil
}

func printTask(cmd *cobra.Command, task a2a.Task) error {
	out, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func newClient() *Client {
	return &Client{BaseURL: flagGateway, APIKey: flagAPIKey, AgentID: flagAgentID}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gatectl:", err)
		os.Exit(1)
	}
}

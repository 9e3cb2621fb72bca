package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect and run assistant tools",
	RunE:  runToolsList,
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available tools",
	RunE:  runToolsList,
}

var toolsCallCmd = &cobra.Command{
	Use:   "call [tool-name]",
	Short: "Run a tool directly",
	Long: `Run a tool directly, bypassing the model.

Arguments are passed as a JSON object, for example:
  valet tools call weather_forecast --args '{"location":"Lisbon","days":3}'`,
	Args: cobra.ExactArgs(1),
	RunE: runToolsCall,
}

// toolArgs is a flag for the call command.
var toolArgs string

func init() {
	toolsCallCmd.Flags().StringVarP(&toolArgs, "args", "a", "{}", "Tool arguments as a JSON object")

	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsCallCmd)
	rootCmd.AddCommand(toolsCmd)
}

func runToolsList(cmd *cobra.Command, _ []string) error {
	if toolRunner == nil {
		return errors.New("tool runner not configured")
	}

	defs := toolRunner.Definitions()
	if len(defs) == 0 {
		cmd.Println("No tools registered.")
		return nil
	}

	for _, def := range defs {
		cmd.Printf("  %s\n", def.Name)
		cmd.Printf("      %s\n", def.Description)
		for _, param := range def.Parameters {
			required := ""
			if param.Required {
				required = " (required)"
			}
			cmd.Printf("      - %s (%s%s): %s\n", param.Name, param.Type, required, param.Description)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d tools\n", len(defs))
	return nil
}

func runToolsCall(cmd *cobra.Command, args []string) error {
	if toolRunner == nil {
		return errors.New("tool runner not configured")
	}

	var callArgs map[string]any
	if err := json.Unmarshal([]byte(toolArgs), &callArgs); err != nil {
		return fmt.Errorf("parsing --args: %w", err)
	}

	result := toolRunner.Dispatch(cmd.Context(), domain.ToolCallRequest{
		Name: args[0],
		Args: callArgs,
	})

	if !result.OK {
		return fmt.Errorf("tool failed: %s", result.Error)
	}

	cmd.Println(prettyJSON(json.RawMessage(result.Payload())))
	return nil
}

// prettyJSON re-indents a JSON payload for terminal output.
func prettyJSON(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(pretty)
}

// Command askme sends a prompt to a configured LLM service and prints the
// normalized answer.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/askmecli/askme/pkg/client"
	"github.com/askmecli/askme/pkg/config"
	"github.com/askmecli/askme/pkg/extract"
	"github.com/askmecli/askme/pkg/provider"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "askme [PROMPT]",
	Short: "Ask a question to a configured LLM service",
	Long: `askme sends a prompt to one of the LLM services declared in askme.yml
(OpenAI, Ollama, Gemini, or Anthropic) and prints the answer.

Pass "-" as the prompt to read it from stdin. Configuration is merged from
the machine-wide file, then ./askme.yml or the user config directory, with
the local layer winning.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringP("service", "s", "", "Service to use (default from config)")
	rootCmd.Flags().StringP("model", "m", "", "Model to use (default from the service entry)")
	rootCmd.Flags().StringP("prompt", "p", "", "System prompt: a key in the config or literal text")
	rootCmd.Flags().String("sprompt", "", "Print the full text of a configured system prompt")
	rootCmd.Flags().StringP("list", "l", "", "List configured services or prompts")
	rootCmd.Flags().Lookup("list").NoOptDefVal = "services"
	rootCmd.Flags().String("lmodels", "", "List the models a service offers")
	rootCmd.Flags().BoolP("nothink", "n", false, "Do not show the reasoning chain")
	rootCmd.Flags().BoolP("json", "j", false, "Output raw JSON")
	rootCmd.Flags().StringP("config", "c", "", "Config file path")
	rootCmd.Flags().BoolP("extractjs", "E", false, "Extract JSON blocks from the response")
	rootCmd.Flags().Bool("repair", false, "Repair almost-JSON blocks during extraction")
	rootCmd.Flags().String("schema", "", "Validate extracted JSON against a JSON Schema file")
	rootCmd.Flags().BoolP("verbose", "v", false, "Enable debug output")
}

func run(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(verbose)

	// A local .env lets the config reference credentials as ${VAR}.
	_ = godotenv.Load()

	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath, config.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if len(cfg.Services) == 0 {
		return errors.New("no services defined in configuration")
	}

	jsonOut, _ := cmd.Flags().GetBool("json")

	if target, _ := cmd.Flags().GetString("list"); target != "" {
		return runList(cfg, target, jsonOut)
	}

	if name, _ := cmd.Flags().GetString("sprompt"); name != "" {
		text, ok := cfg.SystemPrompts[name]
		if !ok {
			return fmt.Errorf("system prompt %q not found in configuration", name)
		}
		fmt.Println(text)
		return nil
	}

	modelOverride, _ := cmd.Flags().GetString("model")

	if svcName, _ := cmd.Flags().GetString("lmodels"); svcName != "" {
		return runListModels(cmd, cfg, svcName, modelOverride, jsonOut)
	}

	if len(args) == 0 {
		printSummary(cfg)
		return nil
	}

	input := args[0]
	if input == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading prompt from stdin: %w", err)
		}
		input = string(data)
	}

	serviceOverride, _ := cmd.Flags().GetString("service")
	promptOverride, _ := cmd.Flags().GetString("prompt")

	c, err := client.New(serviceOverride, cfg, modelOverride, promptOverride)
	if err != nil {
		return err
	}

	result, err := c.Complete(cmd.Context(), input)
	if err != nil {
		return err
	}

	extractJS, _ := cmd.Flags().GetBool("extractjs")
	var extracted any
	if extractJS {
		var opts []extract.Option
		if repair, _ := cmd.Flags().GetBool("repair"); repair {
			opts = append(opts, extract.WithRepair())
		}
		extracted = extract.JSONBlocks(result.Answer, opts...)

		if schemaPath, _ := cmd.Flags().GetString("schema"); schemaPath != "" && extracted != nil {
			schema, err := os.ReadFile(schemaPath)
			if err != nil {
				return fmt.Errorf("reading schema file: %w", err)
			}
			if err := extract.ValidateSchema(extracted, schema); err != nil {
				return err
			}
		}
	}

	if jsonOut {
		return printJSONResult(c, input, result, extractJS, extracted)
	}

	if extractJS {
		if extracted == nil {
			fmt.Fprintln(os.Stderr, "no JSON blocks found in the response")
			return nil
		}
		out, err := json.MarshalIndent(extracted, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding extracted JSON: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	if nothink, _ := cmd.Flags().GetBool("nothink"); !nothink && result.Reasoning != "" {
		fmt.Printf("<think>\n%s\n</think>\n", result.Reasoning)
	}
	fmt.Println(result.Answer)
	return nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))
}

func printJSONResult(c *client.Client, prompt string, result *provider.Result, extractJS bool, extracted any) error {
	var response any = result.Answer
	if extractJS {
		response = extracted
	}
	var think any
	if result.Reasoning != "" {
		think = result.Reasoning
	}

	out, err := json.Marshal(map[string]any{
		"service":       c.ServiceName(),
		"model":         c.Model(),
		"system_prompt": c.SystemPrompt(),
		"prompt":        prompt,
		"response":      response,
		"think":         think,
	})
	if err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runList(cfg *config.Config, target string, jsonOut bool) error {
	switch strings.ToLower(target) {
	case "services", "s":
		return listServices(cfg, jsonOut)
	case "prompts", "p":
		return listPrompts(cfg, jsonOut)
	default:
		return fmt.Errorf("invalid list target %q (use services or prompts)", target)
	}
}

func listServices(cfg *config.Config, jsonOut bool) error {
	names := sortedKeys(cfg.Services)

	if jsonOut {
		type entry struct {
			Name  string `json:"name"`
			Type  string `json:"type"`
			Model string `json:"model"`
			Descr string `json:"descr"`
		}
		entries := make([]entry, 0, len(names))
		for _, name := range names {
			svc := cfg.Services[name]
			entries = append(entries, entry{
				Name:  name,
				Type:  svc.Class,
				Model: orNone(svc.Model),
				Descr: svc.Description,
			})
		}
		out, err := json.Marshal(map[string]any{
			"default":  cfg.DefaultService,
			"services": entries,
		})
		if err != nil {
			return fmt.Errorf("encoding services list: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println("Configured services:")
	for _, name := range names {
		printServiceLine(cfg, name)
	}
	return nil
}

func printServiceLine(cfg *config.Config, name string) {
	svc := cfg.Services[name]

	prefix := "-"
	if name == cfg.DefaultService {
		prefix = color.GreenString("*")
	}
	class := svc.Class
	if !provider.ValidClass(class) {
		class = color.RedString("INVALID")
	}
	desc := svc.Description
	if desc == "" {
		desc = "No description"
	}
	fmt.Printf("%s %s (Class: %s, Model: %s) - %s\n", prefix, name, class, orNone(svc.Model), desc)
}

func listPrompts(cfg *config.Config, jsonOut bool) error {
	names := sortedKeys(cfg.SystemPrompts)

	if jsonOut {
		type entry struct {
			Name   string `json:"name"`
			Prompt string `json:"prompt"`
		}
		entries := make([]entry, 0, len(names))
		for _, name := range names {
			entries = append(entries, entry{Name: name, Prompt: cfg.SystemPrompts[name]})
		}
		out, err := json.Marshal(map[string]any{
			"default": cfg.DefaultPrompt,
			"prompts": entries,
		})
		if err != nil {
			return fmt.Errorf("encoding prompts list: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println("Configured system prompts:")
	for _, name := range names {
		prefix := "-"
		if name == cfg.DefaultPrompt {
			prefix = color.GreenString("*")
		}
		first, _, _ := strings.Cut(cfg.SystemPrompts[name], "\n")
		if len(first) > 50 {
			first = first[:47] + "..."
		}
		fmt.Printf("%s %s : %q\n", prefix, name, first)
	}
	return nil
}

func runListModels(cmd *cobra.Command, cfg *config.Config, svcName, modelOverride string, jsonOut bool) error {
	c, err := client.New(svcName, cfg, modelOverride, "")
	if err != nil {
		return fmt.Errorf("initializing client for model listing: %w", err)
	}

	models, err := c.ListModels(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing models: %w", err)
	}

	if jsonOut {
		out, err := json.MarshalIndent(models, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding models list: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Available models for %s:\n", svcName)
	for _, model := range models {
		fmt.Printf("- %s\n", model)
	}
	return nil
}

func printSummary(cfg *config.Config) {
	fmt.Println("askme - ask a question to a configured LLM service")
	fmt.Println(`Usage: askme [flags] "your question" (see --help)`)
	fmt.Println()

	fmt.Println("Available services:")
	for _, name := range sortedKeys(cfg.Services) {
		printServiceLine(cfg, name)
	}
	fmt.Println()

	if svc, ok := cfg.Services[cfg.DefaultService]; ok {
		fmt.Printf("Default service: %s (Model: %s)\n", cfg.DefaultService, orNone(svc.Model))
	} else {
		fmt.Printf("Default service %q is not defined\n", cfg.DefaultService)
	}
	fmt.Printf("Default prompt: %s\n", cfg.DefaultPrompt)
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/config"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// secretKeys are never printed in full.
var secretKeys = map[string]bool{
	"embedding.api_key": true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	Long: `Reads and writes the TOML configuration file. Environment variables
prefixed with SERCHA_KB_ still override what is stored here.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every default",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one value, or every value when no key is given",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store a value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "replace values already in the file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func openConfigStore() (*file.ConfigStore, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	return file.NewConfigStore(path)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	store, err := openConfigStore()
	if err != nil {
		return err
	}
	if err := store.Init(config.Defaults(), configForce); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	cmd.Printf("Configuration written to %s\n", store.Path())
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	store, err := openConfigStore()
	if err != nil {
		return err
	}
	defaults := config.Defaults()

	if len(args) == 1 {
		key := args[0]
		if val, ok := store.Get(key); ok {
			cmd.Println(displayValue(key, val))
			return nil
		}
		if val, ok := defaults[key]; ok {
			cmd.Printf("%s (default)\n", displayValue(key, val))
			return nil
		}
		return fmt.Errorf("%w: unknown key %q", domain.ErrNotFound, key)
	}

	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	for _, key := range store.Keys() {
		if _, ok := defaults[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		if val, ok := store.Get(key); ok {
			cmd.Printf("%s = %s\n", key, displayValue(key, val))
		} else {
			cmd.Printf("%s = %s (default)\n", key, displayValue(key, defaults[key]))
		}
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]
	val, err := parseConfigValue(key, raw)
	if err != nil {
		return err
	}

	store, err := openConfigStore()
	if err != nil {
		return err
	}
	if err := store.Set(key, val); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	cmd.Printf("%s = %s\n", key, displayValue(key, val))
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	store, err := openConfigStore()
	if err != nil {
		return err
	}
	cmd.Println(store.Path())
	return nil
}

// parseConfigValue converts raw to the type of the key's default.
func parseConfigValue(key, raw string) (any, error) {
	def, ok := config.Defaults()[key]
	if !ok {
		return nil, fmt.Errorf("%w: unknown key %q", domain.ErrInvalidInput, key)
	}

	switch def.(type) {
	case int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects an integer, got %q", domain.ErrInvalidInput, key, raw)
		}
		return n, nil
	case float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects a number, got %q", domain.ErrInvalidInput, key, raw)
		}
		return f, nil
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects true or false, got %q", domain.ErrInvalidInput, key, raw)
		}
		return b, nil
	}

	if isDurationKey(key) {
		if _, err := time.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("%w: %s expects a duration such as 30s, got %q", domain.ErrInvalidInput, key, raw)
		}
	}
	return raw, nil
}

func isDurationKey(key string) bool {
	return strings.HasSuffix(key, "timeout") || strings.HasSuffix(key, "interval") || key == "extract.backoff"
}

// displayValue formats a value for the terminal, masking secrets.
func displayValue(key string, val any) string {
	s := fmt.Sprint(val)
	if !secretKeys[key] || s == "" {
		return s
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:3] + "..." + s[len(s)-4:]
}

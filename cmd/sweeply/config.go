package sweeply

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sweeply/sweeply/internal/conf"
	"github.com/sweeply/sweeply/internal/errors"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Show or change persisted configuration",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := conf.Load("")
		if err != nil {
			return err
		}

		if len(args) == 0 {
			if flagJSON {
				return json.NewEncoder(os.Stdout).Encode(cfg)
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		if len(args) == 1 {
			return errors.Validation("config changes need both a key and a value")
		}

		if err := applyConfigValue(&cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := conf.Save(cfg, ""); err != nil {
			return err
		}
		fmt.Printf("Set %s = %s\n", args[0], args[1])
		return nil
	},
}

// applyConfigValue updates one option by its JSON key. The option set
// is closed; unknown keys are rejected.
func applyConfigValue(cfg *conf.Config, key, value string) error {
	parseBool := func() (bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, errors.Validationf("%s expects true or false, got %q", key, value)
		}
		return b, nil
	}
	parseInt := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, errors.Validationf("%s expects an integer, got %q", key, value)
		}
		return n, nil
	}

	switch key {
	case "dry_run":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.DryRun = b
	case "auto_backup":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.AutoBackup = b
	case "require_backup_on_delete":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.RequireBackupOnDelete = b
	case "verbose_logging":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.VerboseLogging = b
	case "aggressive_mode":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.AggressiveMode = b
	case "parallel_workers":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.ParallelWorkers = n
	case "min_safety_score":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.MinSafetyScore = n
	case "backup_keep_last":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.BackupKeepLast = n
	case "delete_mode":
		cfg.DeleteMode = conf.DeleteMode(value)
	case "backup_provider":
		cfg.BackupProvider = value
	case "remote_backup_url":
		cfg.RemoteBackupURL = value
	default:
		return errors.Validationf("unknown configuration key %q", key)
	}
	return nil
}

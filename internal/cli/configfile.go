package cli

import (
	"fmt"
	"strings"

	"auditrelay/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// loadConfigFile merges a YAML config file into c. Flags set explicitly on
// the command line keep their values.
func loadConfigFile(cmd *cobra.Command, path string, c *config.Config) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	type saved struct {
		flag  *pflag.Flag
		value string
		slice []string
	}
	var explicit []saved
	cmd.Flags().Visit(func(f *pflag.Flag) {
		s := saved{flag: f}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			s.slice = sv.GetSlice()
		} else {
			s.value = f.Value.String()
		}
		explicit = append(explicit, s)
	})

	if err := c.LoadFile(path); err != nil {
		return err
	}

	for _, s := range explicit {
		if sv, ok := s.flag.Value.(pflag.SliceValue); ok {
			if err := sv.Replace(s.slice); err != nil {
				return fmt.Errorf("restore --%s: %w", s.flag.Name, err)
			}
			continue
		}
		if err := s.flag.Value.Set(s.value); err != nil {
			return fmt.Errorf("restore --%s: %w", s.flag.Name, err)
		}
	}
	return nil
}

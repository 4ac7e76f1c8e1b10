package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

// DotEnvFile is read from the working directory before flags are parsed.
const DotEnvFile = ".env"

// LoadDotEnv loads DotEnvFile into the environment. A missing file is not
// an error. Variables already set in the environment win.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// DotEnvBefore is an App.Before hook that loads DotEnvFile.
func DotEnvBefore(_ *cli.Context) error {
	return LoadDotEnv(DotEnvFile)
}

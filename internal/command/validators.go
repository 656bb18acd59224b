// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/tennisbet/internal/cache"
	mylog "github.com/staranto/tennisbet/internal/log"
)

// GlobalFlagsValidator runs before every query command.
func GlobalFlagsValidator(ctx context.Context, c *cli.Command) error {
	if c.Bool("debug") {
		return mylog.SetLevel("debug")
	}
	return nil
}

type FlagValidatorType func(any) error

func FlagValidators(value any, validators ...FlagValidatorType) error {
	for _, v := range validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}

// JammedFlagValidator verifies that the arg following a flag does not begin
// with '--'.  urfave/cli allows this and I don't see how to turn it off.
func JammedFlagValidator(value any) error {
	if strings.HasPrefix(value.(string), "--") {
		return errors.New("must not begin with '--'")
	}
	return nil
}

func OutputValidator(value any) error {
	validOutputFlagValues := []string{"text", "json", "raw", "yaml"}
	if !slices.Contains(validOutputFlagValues, value.(string)) {
		return fmt.Errorf("must be one of %v", validOutputFlagValues)
	}
	return nil
}

// PolicyValidator accepts an empty value, meaning the command's default.
func PolicyValidator(value any) error {
	s := value.(string)
	if s == "" {
		return nil
	}
	_, err := cache.ParsePolicy(s)
	return err
}

func DateValidator(value any) error {
	_, err := parseDate(value.(string), nowFunc())
	return err
}
